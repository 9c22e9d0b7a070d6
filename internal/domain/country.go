package domain

import "strings"

// Country 支持的国家（封闭集合）
type Country string

const (
	CountryUSA        Country = "USA"
	CountryChina      Country = "China"
	CountryRussia     Country = "Russia"
	CountryGermany    Country = "Germany"
	CountryFrance     Country = "France"
	CountryItaly      Country = "Italy"
	CountryBrazil     Country = "Brazil"
	CountryMexico     Country = "Mexico"
	CountryArgentina  Country = "Argentina"
	CountryTurkey     Country = "Turkey"
	CountryUkraine    Country = "Ukraine"
	CountryUzbekistan Country = "Uzbekistan"
)

// AllCountries 所有国家，顺序即展示顺序
var AllCountries = []Country{
	CountryUSA,
	CountryChina,
	CountryRussia,
	CountryGermany,
	CountryFrance,
	CountryItaly,
	CountryBrazil,
	CountryMexico,
	CountryArgentina,
	CountryTurkey,
	CountryUkraine,
	CountryUzbekistan,
}

var countryFlags = map[Country]string{
	CountryUSA:        "🇺🇸",
	CountryChina:      "🇨🇳",
	CountryRussia:     "🇷🇺",
	CountryGermany:    "🇩🇪",
	CountryFrance:     "🇫🇷",
	CountryItaly:      "🇮🇹",
	CountryBrazil:     "🇧🇷",
	CountryMexico:     "🇲🇽",
	CountryArgentina:  "🇦🇷",
	CountryTurkey:     "🇹🇷",
	CountryUkraine:    "🇺🇦",
	CountryUzbekistan: "🇺🇿",
}

// ParseCountry 按名称或 key 解析国家（大小写不敏感）
func ParseCountry(s string) (Country, bool) {
	s = strings.TrimSpace(s)
	for _, c := range AllCountries {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// IsValid 是否属于支持的国家集合
func (c Country) IsValid() bool {
	_, ok := countryFlags[c]
	return ok
}

// IsBuiltIn 日历是否随程序打包（无需联网）
func (c Country) IsBuiltIn() bool {
	return c == CountryUSA || c == CountryChina
}

// Key 日历 JSON 中的国家键，如 "usa"
func (c Country) Key() string {
	return strings.ToLower(string(c))
}

// FileName 内置日历文件名
func (c Country) FileName() string {
	return "vaccines_" + c.Key() + ".json"
}

func (c Country) Flag() string {
	return countryFlags[c]
}

// DisplayName 带国旗的展示名
func (c Country) DisplayName() string {
	name := string(c)
	if c == CountryUSA {
		name = "United States"
	}
	return c.Flag() + " " + name
}

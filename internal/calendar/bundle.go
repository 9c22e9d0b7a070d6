package calendar

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"vaxtrack/internal/domain"
)

//go:embed data/*.json
var bundledFiles embed.FS

// Bundle 随程序发布的内置日历文件
type Bundle struct {
	fsys fs.FS
}

// NewBundle 从任意 fs.FS 读取（测试中使用 fstest.MapFS）
func NewBundle(fsys fs.FS) *Bundle {
	return &Bundle{fsys: fsys}
}

// DefaultBundle 内嵌的 data/ 目录
func DefaultBundle() *Bundle {
	sub, err := fs.Sub(bundledFiles, "data")
	if err != nil {
		panic(err)
	}
	return NewBundle(sub)
}

// Load 读取并解析某国的内置日历
func (b *Bundle) Load(country domain.Country) (domain.VaccineData, error) {
	raw, err := fs.ReadFile(b.fsys, country.FileName())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.VaccineData{}, newLoadError(ErrFileNotFound, country, nil)
		}
		return domain.VaccineData{}, newLoadError(ErrFileNotFound, country, err)
	}
	data, err := parseCalendar(raw, country)
	if err != nil {
		return domain.VaccineData{}, newLoadError(ErrParsing, country, err)
	}
	return data, nil
}

// parseCalendar 解析 {"<countryKey>": {mandatory, recommended}, ...}
func parseCalendar(raw []byte, country domain.Country) (domain.VaccineData, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.VaccineData{}, fmt.Errorf("invalid calendar document: %w", err)
	}
	section, ok := doc[country.Key()]
	if !ok {
		return domain.VaccineData{}, fmt.Errorf("calendar document has no %q section", country.Key())
	}
	var data domain.VaccineData
	if err := json.Unmarshal(section, &data); err != nil {
		return domain.VaccineData{}, fmt.Errorf("invalid %q section: %w", country.Key(), err)
	}
	return data, nil
}

package domain

// VaccineType 疫苗类别
type VaccineType string

const (
	VaccineMandatory   VaccineType = "mandatory"
	VaccineRecommended VaccineType = "recommended"
)

// VaccineDefinition 日历中的一种疫苗（只读）
type VaccineDefinition struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	NameKey            string      `json:"nameKey,omitempty"`
	Disease            string      `json:"disease,omitempty"`
	AgeInMonths        int         `json:"ageInMonths"`
	AgeDescription     string      `json:"ageDescription,omitempty"`
	Type               VaccineType `json:"type,omitempty"`
	Doses              int         `json:"doses,omitempty"`
	DoseIntervalMonths int         `json:"doseIntervalMonths,omitempty"`
	Description        string      `json:"description,omitempty"`
	Notes              string      `json:"notes,omitempty"`
}

// DoseCount 剂次数，缺省为 1
func (v VaccineDefinition) DoseCount() int {
	if v.Doses < 1 {
		return 1
	}
	return v.Doses
}

func (v VaccineDefinition) IsMandatory() bool {
	return v.Type == VaccineMandatory
}

// VaccineData 一个国家的日历：强制 + 推荐
type VaccineData struct {
	Mandatory   []VaccineDefinition `json:"mandatory"`
	Recommended []VaccineDefinition `json:"recommended"`
}

// Schedule 展开为有序列表；类别以所在列表为准
func (d VaccineData) Schedule(country Country) Schedule {
	vaccines := make([]VaccineDefinition, 0, len(d.Mandatory)+len(d.Recommended))
	for _, v := range d.Mandatory {
		v.Type = VaccineMandatory
		vaccines = append(vaccines, v)
	}
	for _, v := range d.Recommended {
		v.Type = VaccineRecommended
		vaccines = append(vaccines, v)
	}
	return Schedule{Country: country, Vaccines: vaccines}
}

// Schedule 国家接种日历
type Schedule struct {
	Country  Country             `json:"country"`
	Vaccines []VaccineDefinition `json:"vaccines"`
}

// VaccineByID 线性查找；找不到返回 false
func (s Schedule) VaccineByID(id string) (VaccineDefinition, bool) {
	for _, v := range s.Vaccines {
		if v.ID == id {
			return v, true
		}
	}
	return VaccineDefinition{}, false
}

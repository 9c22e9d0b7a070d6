package domain

import "time"

// Status 接种状态
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
)

// ParseStatus 解析状态筛选参数
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusUpcoming, StatusOverdue, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// VaccinationRecord 每个 (儿童, 疫苗, 剂次) 一条记录
type VaccinationRecord struct {
	ID            string     `json:"id"`
	ChildID       string     `json:"childId"`
	VaccineID     string     `json:"vaccineId"`
	DoseNumber    int        `json:"doseNumber"`
	TotalDoses    int        `json:"totalDoses"`
	ScheduledDate time.Time  `json:"scheduledDate"`
	CompletedDate *time.Time `json:"completedDate,omitempty"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	DoctorName    string     `json:"doctorName,omitempty"`
	Location      string     `json:"location,omitempty"`
	BatchNumber   string     `json:"batchNumber,omitempty"`
	NextDoseDate  *time.Time `json:"nextDoseDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (r VaccinationRecord) IsCompleted() bool {
	return r.CompletedDate != nil
}

// CompletionData 完成接种时填写的信息
type CompletionData struct {
	CompletedDate time.Time `json:"completedDate"`
	Notes         string    `json:"notes,omitempty"`
	DoctorName    string    `json:"doctorName,omitempty"`
	Location      string    `json:"location,omitempty"`
	BatchNumber   string    `json:"batchNumber,omitempty"`
}

package domain

import "time"

// Child 儿童档案
type Child struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Country     Country   `json:"country"`
	PhotoURI    string    `json:"photoUri,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChildUpdate 部分更新；nil 字段保持不变
type ChildUpdate struct {
	Name        *string    `json:"name,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Country     *Country   `json:"country,omitempty"`
	PhotoURI    *string    `json:"photoUri,omitempty"`
}

// Apply 应用更新
func (u ChildUpdate) Apply(c *Child) {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.DateOfBirth != nil {
		c.DateOfBirth = *u.DateOfBirth
	}
	if u.Country != nil {
		c.Country = *u.Country
	}
	if u.PhotoURI != nil {
		c.PhotoURI = *u.PhotoURI
	}
}

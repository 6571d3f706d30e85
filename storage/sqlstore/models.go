package sqlstore

import "time"

// projectRow holds one encoded project document.
type projectRow struct {
	Name      string `gorm:"primaryKey;size:255"`
	Document  []byte `gorm:"not null"`
	Revision  int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (projectRow) TableName() string { return "projects" }

type accountRow struct {
	Username     string `gorm:"primaryKey;size:255"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
}

func (accountRow) TableName() string { return "accounts" }

// projectRefRow is one entry of a user's project list. ID preserves insertion order.
type projectRefRow struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"size:255;not null;uniqueIndex:idx_project_refs_user_project"`
	Project  string `gorm:"size:255;not null;uniqueIndex:idx_project_refs_user_project"`
}

func (projectRefRow) TableName() string { return "project_refs" }

package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	KindIncome  = "income"
	KindExpense = "expense"
)

type Transaction struct {
    gorm.Model
    UserID       uint           `gorm:"column:user_id;not null;index" json:"user_id"`
    Amount       float64        `gorm:"column:amount;type:float;not null" json:"amount"`
    Kind         string         `gorm:"column:kind;type:text;not null" json:"kind"`
    Category     string         `gorm:"column:category;type:text;not null" json:"category"`
    Description  string         `gorm:"column:description;type:text" json:"description"`
    Date         time.Time      `gorm:"column:date;not null;index" json:"date"`

    Tags         pq.StringArray `gorm:"type:text[];column:tags" json:"tags,omitempty"`

    User         *User          `gorm:"foreignKey:UserID" json:"-"`
}

// ValidKind reports whether k is one of the two supported record kinds.
func ValidKind(k string) bool {
    return k == KindIncome || k == KindExpense
}

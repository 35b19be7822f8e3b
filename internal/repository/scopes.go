package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnedByCreator 将查询限定在 userID 创建的考试范围内。
// exams 表直接比较 creator_id，其余表经 exam_id 关联到 exams。
func OwnedByCreator(table string, userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if table == "exams" {
			return db.Where("exams.creator_id = ?", userID)
		}
		return db.Joins("JOIN exams ON exams.id = "+table+".exam_id").
			Where("exams.creator_id = ?", userID)
	}
}

// OrderedByPosition 按 order 列排序，order 相同或为空时按 id
func OrderedByPosition(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Table: table, Name: "order"}},
			{Column: clause.Column{Table: table, Name: "id"}},
		}})
	}
}

// IsDuplicateKey 判断唯一索引冲突，TranslateError 未覆盖的驱动按错误文本兜底
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

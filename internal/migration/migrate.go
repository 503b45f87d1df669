package migration

import (
	"github.com/damoang/angple-cms/internal/domain"
	"gorm.io/gorm"
)

// Models every table owned by the content engine
func Models() []interface{} {
	return []interface{}{
		&domain.Course{},
		&domain.Lesson{},
		&domain.Package{},
		&domain.BlogPost{},
		&domain.Page{},
		&domain.Revision{},
		&domain.AuditLog{},
	}
}

// Run executes AutoMigrate for the content tables.
// 테이블 없으면 생성, 있으면 누락된 컬럼/인덱스만 추가
func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

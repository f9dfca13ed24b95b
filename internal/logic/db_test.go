package logic

import (
	"fmt"
	"testing"

	"github.com/devgrid/rss/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.RewardRuleModel{},
		&model.EvaluationMetricsModel{},
		&model.TransactionModel{},
		&model.BalanceModel{},
		&model.StakePositionModel{},
		&model.RedemptionRequestModel{},
	))

	return db
}

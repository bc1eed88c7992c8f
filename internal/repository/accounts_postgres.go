package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/internal/service/vault"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresConfig holds connection settings for the account store.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// NewPostgres opens the account database and migrates its schema.
func NewPostgres(cfg PostgresConfig) (*gorm.DB, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&User{}, &Account{}, &Credential{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// User is a platform user. Subscription state gates execution.
type User struct {
	ID                 string `gorm:"primaryKey"`
	Email              string `gorm:"uniqueIndex"`
	Active             bool
	SubscriptionActive bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Account is one (user, exchange) link. Accounts deactivate, never delete.
type Account struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"index"`
	Exchange         string
	Environment      string
	CredentialRef    string
	Active           bool
	AutoTrading      bool
	RiskPercent      float64
	MaxPositionSize  float64
	LeverageCap      int
	MaxOpenPositions int
	BlockedSymbols   string // comma-separated; empty means none
	BalanceSnapshot  float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Credential is the encrypted secret pair behind a credential reference.
type Credential struct {
	Ref                 string `gorm:"primaryKey;column:ref"`
	APIKeyCiphertext    string
	APISecretCiphertext string
	AccessCount         int64
	RotatedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AccountStore implements the account directory and the vault's secret
// store on Postgres.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

// ListEligibleAccounts returns active, auto-trading accounts of users
// with an active subscription, in account-id order. A query error
// propagates so the caller fails the signal closed.
func (s *AccountStore) ListEligibleAccounts(ctx context.Context, signal models.Signal) ([]models.TradingAccount, error) {
	var rows []Account
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = accounts.user_id").
		Where("accounts.active AND accounts.auto_trading").
		Where("users.active AND users.subscription_active").
		Where("accounts.credential_ref <> ''").
		Order("accounts.id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible accounts: %w", err)
	}

	accounts := make([]models.TradingAccount, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, toTradingAccount(r))
	}
	return accounts, nil
}

// EncryptedSecret fetches the ciphertext pair for a reference.
func (s *AccountStore) EncryptedSecret(ctx context.Context, credentialRef string) (vault.EncryptedSecret, error) {
	var c Credential
	err := s.db.WithContext(ctx).First(&c, "ref = ?", credentialRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vault.EncryptedSecret{}, drepo.ErrCredentialNotFound
		}
		return vault.EncryptedSecret{}, fmt.Errorf("load credential: %w", err)
	}
	return vault.EncryptedSecret{
		APIKeyCiphertext:    c.APIKeyCiphertext,
		APISecretCiphertext: c.APISecretCiphertext,
	}, nil
}

// TouchAccess bumps the access counter for audit purposes.
func (s *AccountStore) TouchAccess(ctx context.Context, credentialRef string) error {
	return s.db.WithContext(ctx).
		Model(&Credential{}).
		Where("ref = ?", credentialRef).
		UpdateColumn("access_count", gorm.Expr("access_count + 1")).Error
}

// DeactivateAccount marks an account inactive; rows are never deleted.
func (s *AccountStore) DeactivateAccount(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", accountID).
		Update("active", false).Error
}

// MarkRotated stamps a credential as rotated; callers are expected to
// invalidate caches through the vault's OnRotated.
func (s *AccountStore) MarkRotated(ctx context.Context, credentialRef string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&Credential{}).
		Where("ref = ?", credentialRef).
		Update("rotated_at", &now).Error
}

func toTradingAccount(r Account) models.TradingAccount {
	return models.TradingAccount{
		ID:            r.ID,
		UserID:        r.UserID,
		Exchange:      r.Exchange,
		Environment:   models.Environment(r.Environment),
		CredentialRef: r.CredentialRef,
		Active:        r.Active,
		AutoTrading:   r.AutoTrading,
		Risk: models.RiskParams{
			RiskPercent:      r.RiskPercent,
			MaxPositionSize:  r.MaxPositionSize,
			LeverageCap:      r.LeverageCap,
			MaxOpenPositions: r.MaxOpenPositions,
			BlockedSymbols:   splitSymbols(r.BlockedSymbols),
		},
		BalanceSnapshot: r.BalanceSnapshot,
		LinkedAt:        r.CreatedAt,
	}
}

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

var (
	_ drepo.AccountDirectory = (*AccountStore)(nil)
	_ vault.SecretStore      = (*AccountStore)(nil)
)

// Package storetest provides an in-memory Store for package tests. It
// honors the same contract as the real backends, including the
// forward-only paid transition and single-use token consumption.
package storetest

import (
	"context"
	"sort"
	"sync"

	"tipjar/internal/models"
	"tipjar/internal/store"
)

type Memory struct {
	mu sync.Mutex

	Admins       map[int]*models.AdminUser
	Tokens       map[string]*models.PasswordChangeToken
	Profile      *models.CreatorProfile
	Transactions map[string]*models.PaymentTransaction

	// FailWith, when set, is returned by every call. Lets tests simulate
	// a store outage.
	FailWith error
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Admins:       map[int]*models.AdminUser{},
		Tokens:       map[string]*models.PasswordChangeToken{},
		Transactions: map[string]*models.PaymentTransaction{},
	}
}

func (m *Memory) SeedAdmin(admin *models.AdminUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *admin
	m.Admins[admin.ID] = &cp
}

func (m *Memory) GetAdminByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	for _, admin := range m.Admins {
		if admin.Email == email {
			cp := *admin
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) GetAdminByID(_ context.Context, id int) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	admin, ok := m.Admins[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *admin
	return &cp, nil
}

func (m *Memory) UpdateAdminPassword(_ context.Context, id int, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if admin, ok := m.Admins[id]; ok {
		admin.HashedPassword = hashedPassword
	}
	return nil
}

func (m *Memory) CreateResetToken(_ context.Context, tok *models.PasswordChangeToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *tok
	m.Tokens[tok.Token] = &cp
	return nil
}

func (m *Memory) GetResetToken(_ context.Context, token string) (*models.PasswordChangeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	tok, ok := m.Tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *Memory) RedeemResetToken(_ context.Context, token string, adminID int, hashedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	tok, ok := m.Tokens[token]
	if !ok || tok.Used {
		return store.ErrNotFound
	}
	tok.Used = true
	if admin, ok := m.Admins[adminID]; ok {
		admin.HashedPassword = hashedPassword
	}
	return nil
}

func (m *Memory) GetCreatorProfile(_ context.Context) (*models.CreatorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if m.Profile == nil {
		return nil, store.ErrNotFound
	}
	cp := *m.Profile
	return &cp, nil
}

func (m *Memory) UpsertCreatorProfile(_ context.Context, p *models.CreatorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *p
	m.Profile = &cp
	return nil
}

func (m *Memory) CreateTransaction(_ context.Context, txn *models.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	cp := *txn
	m.Transactions[txn.SessionID] = &cp
	return nil
}

func (m *Memory) GetTransactionBySession(_ context.Context, sessionID string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	txn, ok := m.Transactions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (m *Memory) MarkTransactionPaid(_ context.Context, sessionID, status, paymentStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	txn, ok := m.Transactions[sessionID]
	if !ok || txn.PaymentStatus == "paid" {
		return nil
	}
	txn.Status = status
	txn.PaymentStatus = paymentStatus
	return nil
}

func (m *Memory) CompleteTransaction(_ context.Context, sessionID, paymentStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if txn, ok := m.Transactions[sessionID]; ok {
		txn.Status = "completed"
		txn.PaymentStatus = paymentStatus
	}
	return nil
}

func (m *Memory) ListRecentPaidTips(_ context.Context, limit int) ([]models.Tip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	paid := []models.Tip{}
	for _, txn := range m.Transactions {
		if txn.PaymentStatus == "paid" {
			paid = append(paid, models.Tip{
				Amount:     txn.Amount,
				Message:    txn.Message,
				TipperName: txn.TipperName,
				Timestamp:  txn.Timestamp,
			})
		}
	}
	sort.Slice(paid, func(i, j int) bool { return paid[i].Timestamp.After(paid[j].Timestamp) })
	if len(paid) > limit {
		paid = paid[:limit]
	}
	return paid, nil
}

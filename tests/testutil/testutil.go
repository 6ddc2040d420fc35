// Package testutil holds fixtures shared by the unit and integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
)

// TestMarketplace is Amazon France, the marketplace every fixture lives in
const TestMarketplace = "A13V1IB3VIYZZH"

var fixtureNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// MockDB is a postgres-dialect GORM handle over sqlmock
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a MockDB. Expectations are checked and the connection
// closed when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	m := &MockDB{DB: gdb, Mock: mock, SqlDB: conn}
	t.Cleanup(func() {
		if !t.Failed() {
			require.NoError(t, mock.ExpectationsWereMet(), "unmet sql expectations")
		}
		_ = conn.Close()
	})
	return m
}

// NewTestUUID derives a stable id from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(seed))
}

// NewFamily builds a PENDING Color family. Children alternate Rouge and Bleu.
func NewFamily(t *testing.T, parent string, children ...string) *variation.VariationFamily {
	t.Helper()
	require.NotEmpty(t, children, "a family needs at least one child")

	colors := [...]string{"Rouge", "Bleu"}
	rels := make([]variation.ProductRelationship, len(children))
	for i, child := range children {
		rels[i] = variation.ProductRelationship{
			ParentSKU:  parent,
			ChildSKU:   child,
			Themes:     []variation.ThemeName{variation.ThemeColor},
			Attributes: []variation.RelationAttribute{{Name: "Color", Value: colors[i%2]}},
		}
	}

	family, err := variation.NewVariationFamily(TestMarketplace, variation.FamilyAnalysis{
		Key:             fmt.Sprintf("acme_shirt_%s", parent),
		MemberSKUs:      append([]string{parent}, children...),
		HasVariations:   true,
		ConfidenceScore: 0.8,
		SuggestedParent: parent,
	}, rels, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	return family
}

// ContextWithTimeout returns a context that is cancelled when the test ends
// or after timeout, whichever comes first.
func ContextWithTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx, cancel
}

// RequireEventually polls condition every interval and fails the test if it
// is still false after timeout.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, condition, timeout, interval, msgAndArgs...)
}

package patients

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "clinic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB), db.DB
}

func newPatient(first, last string) *entities.Patient {
	return &entities.Patient{
		FirstName:   first,
		LastName:    last,
		Gender:      entities.GenderFemale,
		Phone:       "0100000000",
		DateOfBirth: datatypes.Date(time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestRepository_Add_GeneratesDailyCodes(t *testing.T) {
	repo, _ := setupTestDB(t)
	prefix := "P" + time.Now().Format("20060102")

	first := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(first))
	second := newPatient("Omar", "Said")
	require.NoError(t, repo.Add(second))

	assert.Equal(t, prefix+"0001", first.Code)
	assert.Equal(t, prefix+"0002", second.Code)
	assert.True(t, first.IsActive)
	assert.False(t, first.RegistrationDate.IsZero())
}

func TestRepository_Add_CodesPastFourDigits(t *testing.T) {
	repo, db := setupTestDB(t)
	now := time.Now()
	prefix := "P" + now.Format("20060102")

	for _, code := range []string{prefix + "9999", prefix + "10000"} {
		p := newPatient("Seed", code)
		p.Code = code
		require.NoError(t, db.Create(p).Error)
	}

	next := newPatient("Omar", "Said")
	require.NoError(t, repo.Add(next))
	assert.Equal(t, prefix+"10001", next.Code)
}

func TestRepository_Add_RequiresName(t *testing.T) {
	repo, _ := setupTestDB(t)
	err := repo.Add(&entities.Patient{FirstName: "Mona"})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestRepository_SoftDelete(t *testing.T) {
	repo, _ := setupTestDB(t)

	kept := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(kept))
	hidden := newPatient("Omar", "Said")
	require.NoError(t, repo.Add(hidden))

	require.NoError(t, repo.SoftDelete(hidden.ID))

	t.Run("excluded from active listing", func(t *testing.T) {
		active, err := repo.List(true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, kept.ID, active[0].ID)
	})

	t.Run("excluded from search", func(t *testing.T) {
		found, err := repo.Search("Omar")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("retrievable by id and code", func(t *testing.T) {
		byID, err := repo.GetByID(hidden.ID)
		require.NoError(t, err)
		assert.False(t, byID.IsActive)

		byCode, err := repo.GetByCode(hidden.Code)
		require.NoError(t, err)
		assert.Equal(t, hidden.ID, byCode.ID)
	})

	t.Run("listed when inactive included", func(t *testing.T) {
		all, err := repo.List(false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("restore", func(t *testing.T) {
		require.NoError(t, repo.Restore(hidden.ID))
		found, err := repo.Search("Omar")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, repo.SoftDelete(9999), ErrPatientNotFound)
	})
}

func TestRepository_BulkSoftDelete(t *testing.T) {
	repo, _ := setupTestDB(t)
	var ids []uint
	for _, name := range []string{"Ali", "Hana", "Karim"} {
		p := newPatient(name, "Test")
		require.NoError(t, repo.Add(p))
		ids = append(ids, p.ID)
	}

	n, err := repo.BulkSoftDelete(ids[:2])
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.Count(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	n, err = repo.BulkRestore(ids)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRepository_Search(t *testing.T) {
	repo, _ := setupTestDB(t)

	p := newPatient("Mona", "Adel")
	p.NationalID = "29001011234567"
	p.Phone = "01234567890"
	require.NoError(t, repo.Add(p))
	require.NoError(t, repo.Add(newPatient("Omar", "Said")))

	for _, term := range []string{"mona", "Mona Adel", "2900101", "0123456", p.Code} {
		t.Run(term, func(t *testing.T) {
			found, err := repo.Search(term)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, p.ID, found[0].ID)
		})
	}
}

func TestRepository_AdvancedSearch(t *testing.T) {
	repo, _ := setupTestDB(t)

	female := newPatient("Mona", "Adel")
	female.BloodType = "A+"
	require.NoError(t, repo.Add(female))

	male := newPatient("Omar", "Said")
	male.Gender = entities.GenderMale
	male.BloodType = "O-"
	require.NoError(t, repo.Add(male))

	found, err := repo.AdvancedSearch(SearchFilter{Gender: entities.GenderMale})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, male.ID, found[0].ID)

	found, err = repo.AdvancedSearch(SearchFilter{BloodType: "A+", Name: "mona"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	tomorrow := time.Now().Add(24 * time.Hour)
	found, err = repo.AdvancedSearch(SearchFilter{RegisteredFrom: &tomorrow})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRepository_Update(t *testing.T) {
	repo, _ := setupTestDB(t)
	p := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(p))
	code := p.Code

	p.Phone = "01111111111"
	p.Code = "HIJACKED"
	require.NoError(t, repo.Update(p))

	got, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "01111111111", got.Phone)
	assert.Equal(t, code, got.Code)

	p.ID = 4242
	assert.ErrorIs(t, repo.Update(p), ErrPatientNotFound)
}

func TestRepository_MedicalHistory(t *testing.T) {
	repo, _ := setupTestDB(t)
	p := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(p))

	_, err := repo.GetMedicalHistory(p.ID)
	assert.ErrorIs(t, err, ErrMedicalHistoryNotFound)

	require.NoError(t, repo.UpsertMedicalHistory(&entities.MedicalHistory{PatientID: p.ID, Allergies: "penicillin"}))
	require.NoError(t, repo.UpsertMedicalHistory(&entities.MedicalHistory{PatientID: p.ID, Allergies: "penicillin, latex"}))

	history, err := repo.GetMedicalHistory(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "penicillin, latex", history.Allergies)

	got, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MedicalHistory)

	err = repo.UpsertMedicalHistory(&entities.MedicalHistory{PatientID: 999})
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestRepository_HardDelete(t *testing.T) {
	repo, db := setupTestDB(t)

	p := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(p))
	require.NoError(t, db.Create(&entities.Visit{PatientID: p.ID, QueueDay: "2026-01-01", QueueNumber: 1, Status: entities.VisitStatusDone}).Error)
	require.NoError(t, db.Create(&entities.MedicalDocument{PatientID: p.ID, Title: "X-ray", FilePath: "/tmp/xray.png"}).Error)

	docs, err := repo.HardDelete(p.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/tmp/xray.png", docs[0].FilePath)

	_, err = repo.GetByID(p.ID)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	var visits int64
	require.NoError(t, db.Model(&entities.Visit{}).Count(&visits).Error)
	assert.Zero(t, visits)

	t.Run("refused with invoices", func(t *testing.T) {
		billed := newPatient("Omar", "Said")
		require.NoError(t, repo.Add(billed))
		require.NoError(t, db.Create(&entities.Invoice{Number: "INV-1", PatientID: billed.ID}).Error)

		_, err := repo.HardDelete(billed.ID)
		assert.ErrorIs(t, err, ErrPatientHasInvoices)
	})
}

func TestRepository_WithDebts(t *testing.T) {
	repo, db := setupTestDB(t)

	small := newPatient("Mona", "Adel")
	require.NoError(t, repo.Add(small))
	large := newPatient("Omar", "Said")
	require.NoError(t, repo.Add(large))

	invoices := []entities.Invoice{
		{Number: "INV-A", PatientID: small.ID, RemainingAmount: decimal.NewFromInt(50), PaymentStatus: entities.PaymentStatusPartial},
		{Number: "INV-B", PatientID: large.ID, RemainingAmount: decimal.NewFromInt(100), PaymentStatus: entities.PaymentStatusUnpaid},
		{Number: "INV-C", PatientID: large.ID, RemainingAmount: decimal.NewFromInt(25), PaymentStatus: entities.PaymentStatusPartial},
		{Number: "INV-D", PatientID: small.ID, RemainingAmount: decimal.NewFromInt(500), PaymentStatus: entities.PaymentStatusCancelled},
		{Number: "INV-E", PatientID: small.ID, RemainingAmount: decimal.Zero, PaymentStatus: entities.PaymentStatusPaid},
	}
	require.NoError(t, db.Create(&invoices).Error)

	debts, err := repo.WithDebts()
	require.NoError(t, err)
	require.Len(t, debts, 2)
	assert.Equal(t, large.ID, debts[0].Patient.ID)
	assert.Equal(t, "125", debts[0].TotalDebt.String())
	assert.Equal(t, 2, debts[0].InvoiceCount)
	assert.Equal(t, "50", debts[1].TotalDebt.String())
}

func TestPatient_Age(t *testing.T) {
	p := newPatient("Mona", "Adel")
	assert.Equal(t, 36, p.Age(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, p.Age(time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 34, p.Age(time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)))
	assert.True(t, strings.HasPrefix(p.FullName(), "Mona"))
}

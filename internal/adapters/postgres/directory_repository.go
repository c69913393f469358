package postgres

import (
	"context"

	"github.com/viralforge/stakeshare/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryRepository serves the program, creator and contract projections kept
// in sync from their owning services. The Save methods are used by the sync
// consumer and by seeding in local runs.
type DirectoryRepository struct {
	db *gorm.DB
}

func (r *DirectoryRepository) GetProgram(ctx context.Context, programID string) (domain.Program, error) {
	var row programTermsModel
	if err := r.db.WithContext(ctx).Where("program_id = ?", programID).First(&row).Error; err != nil {
		return domain.Program{}, notFound(err)
	}
	return domain.Program{
		ProgramID:             row.ProgramID,
		CompanyID:             row.CompanyID,
		FounderID:             row.FounderID,
		RevenueShareEnabled:   row.RevenueShareEnabled,
		RevenueSharePercent:   row.RevenueSharePercent,
		CompanyValuationCents: row.CompanyValuationCents,
		Currency:              row.Currency,
	}, nil
}

func (r *DirectoryRepository) GetCreator(ctx context.Context, creatorID string) (domain.Creator, error) {
	var row creatorAccountModel
	if err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).First(&row).Error; err != nil {
		return domain.Creator{}, notFound(err)
	}
	return domain.Creator{CreatorID: row.CreatorID, PayoutAccountID: row.PayoutAccountID}, nil
}

func (r *DirectoryRepository) GetContract(ctx context.Context, contractID string) (domain.Contract, error) {
	var row creatorContractModel
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&row).Error; err != nil {
		return domain.Contract{}, notFound(err)
	}
	return domain.Contract{
		ContractID:    row.ContractID,
		CreatorID:     row.CreatorID,
		FounderID:     row.FounderID,
		ProgramID:     row.ProgramID,
		StartDate:     row.StartDate.UTC(),
		TotalMonths:   row.TotalMonths,
		EquityPercent: row.EquityPercent,
	}, nil
}

func (r *DirectoryRepository) SaveProgram(ctx context.Context, p domain.Program) error {
	row := programTermsModel{
		ProgramID:             p.ProgramID,
		CompanyID:             p.CompanyID,
		FounderID:             p.FounderID,
		RevenueShareEnabled:   p.RevenueShareEnabled,
		RevenueSharePercent:   p.RevenueSharePercent,
		CompanyValuationCents: p.CompanyValuationCents,
		Currency:              p.Currency,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *DirectoryRepository) SaveCreator(ctx context.Context, c domain.Creator) error {
	row := creatorAccountModel{CreatorID: c.CreatorID, PayoutAccountID: c.PayoutAccountID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *DirectoryRepository) SaveContract(ctx context.Context, c domain.Contract) error {
	row := creatorContractModel{
		ContractID:    c.ContractID,
		CreatorID:     c.CreatorID,
		FounderID:     c.FounderID,
		ProgramID:     c.ProgramID,
		StartDate:     c.StartDate.UTC(),
		TotalMonths:   c.TotalMonths,
		EquityPercent: c.EquityPercent,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Package costing orquesta las sesiones de costeo de importación: creación,
// recálculo del desglose por línea y finalización, que siembra los lotes
// costeados en el registro BONDED.
package costing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comex-api/internal/application/ledger"
	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain"
	domaincosting "github.com/jhoicas/comex-api/internal/domain/costing"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/pkg/logger"
)

// UseCase opera sesiones de costeo.
type UseCase struct {
	txRunner ports.TxRunner
	ledger   *ledger.UseCase
	clock    ports.Clock
	log      *logger.Logger
}

// NewUseCase construye el caso de uso de costeo.
func NewUseCase(txRunner ports.TxRunner, ledgerUC *ledger.UseCase, clock ports.Clock, log *logger.Logger) *UseCase {
	return &UseCase{txRunner: txRunner, ledger: ledgerUC, clock: clock, log: log}
}

// LineInput es una línea de la importación a costear.
type LineInput struct {
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	SourcePrice decimal.Decimal // precio total de la línea en moneda origen
}

// CreateInput datos para abrir una sesión de costeo.
type CreateInput struct {
	Reference    string
	ExchangeRate decimal.Decimal

	TaxPct           decimal.Decimal
	LogisticsPct     decimal.Decimal
	StoragePct       decimal.Decimal
	DeclarationPct   decimal.Decimal
	CertificationPct decimal.Decimal
	MiscPct          decimal.Decimal
	ContingencyPct   decimal.Decimal

	CustomsTotal decimal.Decimal
	LoadingTotal decimal.Decimal
	ReturnsTotal decimal.Decimal

	Lines     []LineInput
	CreatedBy string
}

// CreateSession persiste la sesión con sus líneas en una transacción. Los
// productos de las líneas deben existir: el costeo termina sembrando lotes.
func (uc *UseCase) CreateSession(ctx context.Context, in CreateInput) (*entity.CostingSession, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var created *entity.CostingSession
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		now := uc.clock.Now()
		s := &entity.CostingSession{
			Reference:        in.Reference,
			ExchangeRate:     in.ExchangeRate,
			TaxPct:           in.TaxPct,
			LogisticsPct:     in.LogisticsPct,
			StoragePct:       in.StoragePct,
			DeclarationPct:   in.DeclarationPct,
			CertificationPct: in.CertificationPct,
			MiscPct:          in.MiscPct,
			ContingencyPct:   in.ContingencyPct,
			CustomsTotal:     in.CustomsTotal,
			LoadingTotal:     in.LoadingTotal,
			ReturnsTotal:     in.ReturnsTotal,
			CreatedAt:        now,
			CreatedBy:        in.CreatedBy,
		}
		if err := r.Costing.CreateSession(s); err != nil {
			return err
		}

		for _, l := range in.Lines {
			p, err := r.Products.GetByID(l.ProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return domain.ErrProductNotFound
			}
			line := &entity.CostingLine{
				SessionID:   s.ID,
				ProductID:   l.ProductID,
				Description: l.Description,
				Quantity:    l.Quantity,
				SourcePrice: l.SourcePrice,
			}
			if err := r.Costing.CreateLine(line); err != nil {
				return err
			}
		}

		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Calculate computa el desglose por línea y reemplaza los snapshots de la
// sesión. Las desviaciones del prorrateo se registran como warning sin
// invalidar el resultado. Una sesión finalizada no se recalcula.
func (uc *UseCase) Calculate(ctx context.Context, sessionID string) ([]*entity.CostingItemSnapshot, error) {
	var snapshots []*entity.CostingItemSnapshot
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		s, err := r.Costing.GetSessionForUpdate(sessionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrNotFound
		}
		if s.Finalized {
			return domain.ErrCostingFinalized
		}

		lines, err := r.Costing.ListLines(sessionID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrInvalidInput
		}

		snapshots = domaincosting.Calculate(s, lines, uc.clock.Now())
		if ok, mismatches := domaincosting.ValidateAllocation(s, snapshots); !ok {
			for _, m := range mismatches {
				uc.log.Warn().
					Str("session_id", sessionID).
					Str("field", m.Field).
					Str("configured", m.Configured.String()).
					Str("allocated", m.Allocated.String()).
					Msg("prorrateo de costeo desviado del total configurado")
			}
		}
		return r.Costing.ReplaceSnapshots(sessionID, snapshots)
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Finalize cierra la sesión y siembra un lote BONDED por línea con el costo
// unitario calculado. Corre en UNA transacción: si alguna siembra falla no
// queda ni la sesión finalizada ni lotes a medias. Finalizar es de una sola
// vía; el recálculo posterior queda bloqueado.
func (uc *UseCase) Finalize(ctx context.Context, sessionID, finalizedBy string) error {
	return uc.txRunner.Run(ctx, func(r ports.Repos) error {
		s, err := r.Costing.GetSessionForUpdate(sessionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrNotFound
		}
		if s.Finalized {
			return domain.ErrCostingFinalized
		}

		snapshots, err := r.Costing.ListSnapshots(sessionID)
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			// Finalizar sin recálculo previo: se calcula aquí mismo.
			lines, err := r.Costing.ListLines(sessionID)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return domain.ErrInvalidInput
			}
			snapshots = domaincosting.Calculate(s, lines, uc.clock.Now())
			if err := r.Costing.ReplaceSnapshots(sessionID, snapshots); err != nil {
				return err
			}
		}

		for _, snap := range snapshots {
			_, err := uc.ledger.RegisterArrivalInTx(r, ledger.ArrivalInput{
				ProductID: snap.ProductID,
				Register:  entity.RegisterBonded,
				Quantity:  snap.Quantity,
				UnitCost:  snap.UnitCost,
				Origin:    "importación",
				Reference: s.Reference,
				CreatedBy: finalizedBy,
			})
			if err != nil {
				return err
			}
		}

		now := uc.clock.Now()
		s.Finalized = true
		s.FinalizedAt = &now
		if err := r.Costing.UpdateSession(s); err != nil {
			return err
		}

		uc.log.Info().
			Str("session_id", sessionID).
			Str("reference", s.Reference).
			Int("batches", len(snapshots)).
			Msg("sesión de costeo finalizada, lotes sembrados en BONDED")
		return nil
	})
}

// GetSession obtiene la sesión con su desglose calculado (si existe).
func (uc *UseCase) GetSession(ctx context.Context, id string) (*entity.CostingSession, []*entity.CostingItemSnapshot, error) {
	var s *entity.CostingSession
	var snaps []*entity.CostingItemSnapshot
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		s, err = r.Costing.GetSession(id)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrNotFound
		}
		snaps, err = r.Costing.ListSnapshots(id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return s, snaps, nil
}

// ListSessions lista sesiones paginadas.
func (uc *UseCase) ListSessions(ctx context.Context, limit, offset int) ([]*entity.CostingSession, error) {
	var list []*entity.CostingSession
	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		list, err = r.Costing.ListSessions(limit, offset)
		return err
	})
	return list, err
}

func validate(in CreateInput) error {
	if !in.ExchangeRate.GreaterThan(decimal.Zero) || len(in.Lines) == 0 {
		return domain.ErrInvalidInput
	}
	for _, l := range in.Lines {
		if l.ProductID == "" || !l.Quantity.GreaterThan(decimal.Zero) || l.SourcePrice.LessThan(decimal.Zero) {
			return domain.ErrInvalidInput
		}
	}
	for _, pct := range []decimal.Decimal{
		in.TaxPct, in.LogisticsPct, in.StoragePct, in.DeclarationPct,
		in.CertificationPct, in.MiscPct, in.ContingencyPct,
	} {
		if pct.LessThan(decimal.Zero) {
			return domain.ErrInvalidInput
		}
	}
	return nil
}

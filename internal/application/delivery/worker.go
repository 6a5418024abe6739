package delivery

import (
	"context"
	"time"

	"github.com/jhoicas/comex-api/internal/application/ports"
	"github.com/jhoicas/comex-api/internal/domain/entity"
	"github.com/jhoicas/comex-api/pkg/logger"
)

// Worker reintenta periódicamente las entregas en PENDING_CONVERSION.
// Cada ciclo toma un lote acotado de pendientes (las menos recientemente
// reintentadas primero) y procesa cada una en sus propias transacciones.
type Worker struct {
	txRunner  ports.TxRunner
	uc        *UseCase
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

// NewWorker construye el worker de reintentos.
func NewWorker(txRunner ports.TxRunner, uc *UseCase, interval time.Duration, batchSize int, log *logger.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Worker{txRunner: txRunner, uc: uc, interval: interval, batchSize: batchSize, log: log}
}

// Run bloquea hasta que el contexto se cancele, ejecutando un ciclo por tick.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("worker de reintentos de entrega iniciado")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker de reintentos detenido")
			return
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}

// Cycle ejecuta un pase de reintentos. Un fallo en una entrega no detiene el
// resto del lote.
func (w *Worker) Cycle(ctx context.Context) {
	var pending []*entity.ContractDelivery
	err := w.txRunner.Run(ctx, func(r ports.Repos) error {
		var err error
		pending, err = r.Deliveries.ListPending(w.batchSize)
		return err
	})
	if err != nil {
		w.log.Error().Err(err).Msg("no se pudieron listar entregas pendientes")
		return
	}
	if len(pending) == 0 {
		return
	}

	completed := 0
	for _, d := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := w.uc.RetryPendingDelivery(ctx, d.ID, "worker"); err != nil {
			w.log.Error().Err(err).
				Str("delivery_id", d.ID).
				Int("retry_count", d.RetryCount+1).
				Msg("reintento de entrega falló")
			continue
		}
		completed++
	}
	w.log.Info().
		Int("pending", len(pending)).
		Int("processed", completed).
		Msg("ciclo de reintentos de entrega")
}

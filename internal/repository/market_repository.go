package repository

import (
	"context"
	"errors"
	"fmt"

	"cot-sentinel/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const marketColumns = `id, symbol, name, category, cftc_contract_market_code,
       price_kind, price_symbol, price_from, price_to, created_at`

type MarketRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewMarketRepository(pool PgxPool, tracer trace.Tracer) *MarketRepository {
	return &MarketRepository{pool: pool, tracer: tracer}
}

// SyncMarkets upserts the configured universe by symbol.
func (r *MarketRepository) SyncMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "market-repo.sync-markets")
	defer span.End()
	span.SetAttributes(attribute.Int("markets.count", len(markets)))

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(`
INSERT INTO markets (symbol, name, category, cftc_contract_market_code, price_kind, price_symbol, price_from, price_to)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol) DO UPDATE SET
    name = EXCLUDED.name,
    category = EXCLUDED.category,
    cftc_contract_market_code = EXCLUDED.cftc_contract_market_code,
    price_kind = EXCLUDED.price_kind,
    price_symbol = EXCLUDED.price_symbol,
    price_from = EXCLUDED.price_from,
    price_to = EXCLUDED.price_to,
    updated_at = NOW()`,
			m.Symbol, m.Name, string(m.Category), nullText(m.CFTCCode),
			nullText(string(m.PriceKind)), nullText(m.PriceSymbol), nullText(m.PriceFrom), nullText(m.PriceTo),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, m := range markets {
		if _, err := br.Exec(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("sync market %s: %w", m.Symbol, err)
		}
	}
	return nil
}

func (r *MarketRepository) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	ctx, span := r.tracer.Start(ctx, "market-repo.list-markets")
	defer span.End()
	return r.list(ctx, `SELECT `+marketColumns+` FROM markets ORDER BY symbol`)
}

// ListCOTMarkets returns markets that carry a CFTC contract code.
func (r *MarketRepository) ListCOTMarkets(ctx context.Context) ([]domain.Market, error) {
	ctx, span := r.tracer.Start(ctx, "market-repo.list-cot-markets")
	defer span.End()
	return r.list(ctx, `SELECT `+marketColumns+` FROM markets
WHERE cftc_contract_market_code IS NOT NULL AND cftc_contract_market_code <> ''
ORDER BY symbol`)
}

func (r *MarketRepository) ListPriceMarkets(ctx context.Context) ([]domain.Market, error) {
	ctx, span := r.tracer.Start(ctx, "market-repo.list-price-markets")
	defer span.End()
	return r.list(ctx, `SELECT `+marketColumns+` FROM markets
WHERE price_kind IS NOT NULL
ORDER BY symbol`)
}

func (r *MarketRepository) GetMarket(ctx context.Context, id int64) (domain.Market, error) {
	ctx, span := r.tracer.Start(ctx, "market-repo.get-market")
	defer span.End()
	span.SetAttributes(attribute.Int64("market.id", id))

	m, err := scanMarket(r.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("market %d: %w", id, ErrNotFound)
	}
	return m, err
}

func (r *MarketRepository) GetMarketBySymbol(ctx context.Context, symbol string) (domain.Market, error) {
	ctx, span := r.tracer.Start(ctx, "market-repo.get-market-by-symbol")
	defer span.End()
	span.SetAttributes(attribute.String("market.symbol", symbol))

	m, err := scanMarket(r.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE UPPER(symbol) = UPPER($1)`, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("market %q: %w", symbol, ErrNotFound)
	}
	return m, err
}

// FetchMarketSymbol returns the label used on scores for a market.
func (r *MarketRepository) FetchMarketSymbol(ctx context.Context, id int64) (string, error) {
	m, err := r.GetMarket(ctx, id)
	if err != nil {
		return "", err
	}
	return m.Symbol, nil
}

func (r *MarketRepository) list(ctx context.Context, sql string) ([]domain.Market, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var category string
	var code, kind, sym, from, to pgtype.Text
	if err := row.Scan(&m.ID, &m.Symbol, &m.Name, &category, &code, &kind, &sym, &from, &to, &m.CreatedAt); err != nil {
		return domain.Market{}, err
	}
	m.Category = domain.MarketCategory(category)
	m.CFTCCode = code.String
	m.PriceKind = domain.PriceKind(kind.String)
	m.PriceSymbol = sym.String
	m.PriceFrom = from.String
	m.PriceTo = to.String
	return m, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/tradesync/internal/core/domain"
	"github.com/vietddude/tradesync/internal/infra/storage"
)

// TradeRepo implements storage.TradeRepository.
type TradeRepo struct {
	db *DB
}

// NewTradeRepo creates a new SQLite trade repository.
func NewTradeRepo(db *DB) *TradeRepo {
	return &TradeRepo{db: db}
}

const upsertTradeQuery = `
	INSERT INTO transactions (
		hash, block_number, creation_date, owner, order_uid, sell_token, buy_token,
		receiver, kind, sell_amount, buy_amount, executed_sell_amount,
		executed_buy_amount, executed_sell_amount_before_fees, created_at, updated_at
	) VALUES (
		:hash, :block_number, :creation_date, :owner, :order_uid, :sell_token, :buy_token,
		:receiver, :kind, :sell_amount, :buy_amount, :executed_sell_amount,
		:executed_buy_amount, :executed_sell_amount_before_fees, :updated_at, :updated_at
	)
	ON CONFLICT (hash) DO UPDATE SET
		block_number = excluded.block_number,
		creation_date = excluded.creation_date,
		owner = excluded.owner,
		order_uid = excluded.order_uid,
		sell_token = excluded.sell_token,
		buy_token = excluded.buy_token,
		receiver = excluded.receiver,
		kind = excluded.kind,
		sell_amount = excluded.sell_amount,
		buy_amount = excluded.buy_amount,
		executed_sell_amount = excluded.executed_sell_amount,
		executed_buy_amount = excluded.executed_buy_amount,
		executed_sell_amount_before_fees = excluded.executed_sell_amount_before_fees,
		updated_at = excluded.updated_at
`

const selectTradeColumns = `
	hash, block_number, creation_date, owner, order_uid, sell_token, buy_token,
	receiver, kind, sell_amount, buy_amount, executed_sell_amount,
	executed_buy_amount, executed_sell_amount_before_fees, updated_at
`

type tradeRow struct {
	Hash                         string `db:"hash"`
	BlockNumber                  int64  `db:"block_number"`
	CreationDate                 int64  `db:"creation_date"` // unix millis
	Owner                        string `db:"owner"`
	OrderUID                     string `db:"order_uid"`
	SellToken                    string `db:"sell_token"`
	BuyToken                     string `db:"buy_token"`
	Receiver                     string `db:"receiver"`
	Kind                         string `db:"kind"`
	SellAmount                   string `db:"sell_amount"`
	BuyAmount                    string `db:"buy_amount"`
	ExecutedSellAmount           string `db:"executed_sell_amount"`
	ExecutedBuyAmount            string `db:"executed_buy_amount"`
	ExecutedSellAmountBeforeFees string `db:"executed_sell_amount_before_fees"`
	UpdatedAt                    int64  `db:"updated_at"` // unix millis
}

func newTradeRow(r *domain.TradeRecord, now time.Time) (*tradeRow, error) {
	amounts := [5]string{
		r.SellAmount, r.BuyAmount, r.ExecutedSellAmount,
		r.ExecutedBuyAmount, r.ExecutedSellAmountBeforeFees,
	}
	for i, a := range amounts {
		clean, err := domain.SanitizeAmount(a)
		if err != nil {
			return nil, fmt.Errorf("trade %s: %w", r.Hash, err)
		}
		amounts[i] = clean
	}

	return &tradeRow{
		Hash:                         normalizeHash(r.Hash),
		BlockNumber:                  int64(r.BlockNumber),
		CreationDate:                 r.CreationDate.UnixMilli(),
		Owner:                        r.Owner,
		OrderUID:                     r.OrderUID,
		SellToken:                    r.SellToken,
		BuyToken:                     r.BuyToken,
		Receiver:                     r.Receiver,
		Kind:                         string(r.Kind),
		SellAmount:                   amounts[0],
		BuyAmount:                    amounts[1],
		ExecutedSellAmount:           amounts[2],
		ExecutedBuyAmount:            amounts[3],
		ExecutedSellAmountBeforeFees: amounts[4],
		UpdatedAt:                    now.UnixMilli(),
	}, nil
}

func (t *tradeRow) toDomain() *domain.TradeRecord {
	return &domain.TradeRecord{
		Hash:                         t.Hash,
		BlockNumber:                  uint64(t.BlockNumber),
		CreationDate:                 time.UnixMilli(t.CreationDate).UTC(),
		Owner:                        t.Owner,
		OrderUID:                     t.OrderUID,
		SellToken:                    t.SellToken,
		BuyToken:                     t.BuyToken,
		Receiver:                     t.Receiver,
		Kind:                         domain.OrderKind(t.Kind),
		SellAmount:                   t.SellAmount,
		BuyAmount:                    t.BuyAmount,
		ExecutedSellAmount:           t.ExecutedSellAmount,
		ExecutedBuyAmount:            t.ExecutedBuyAmount,
		ExecutedSellAmountBeforeFees: t.ExecutedSellAmountBeforeFees,
		UpdatedAt:                    time.UnixMilli(t.UpdatedAt).UTC(),
	}
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Upsert saves a trade record, overwriting any record with the same hash.
func (r *TradeRepo) Upsert(ctx context.Context, record *domain.TradeRecord) error {
	row, err := newTradeRow(record, r.db.now())
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, upsertTradeQuery, row); err != nil {
		return fmt.Errorf("failed to upsert trade: %w", err)
	}
	return nil
}

// UpsertBatch saves all records in one transaction.
func (r *TradeRepo) UpsertBatch(ctx context.Context, records []*domain.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := r.db.now()
	rows := make([]*tradeRow, len(records))
	for i, rec := range records {
		row, err := newTradeRow(rec, now)
		if err != nil {
			return err
		}
		rows[i] = row
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, upsertTradeQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to upsert trade %s: %w", row.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trades: %w", err)
	}
	return nil
}

// ExistsByHash reports whether a trade with this hash is stored.
func (r *TradeRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE hash = ?)`, normalizeHash(hash))
	if err != nil {
		return false, fmt.Errorf("failed to check trade: %w", err)
	}
	return exists, nil
}

// GetByHash retrieves a trade by transaction hash.
func (r *TradeRepo) GetByHash(ctx context.Context, hash string) (*domain.TradeRecord, error) {
	var row tradeRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+selectTradeColumns+` FROM transactions WHERE hash = ?`, normalizeHash(hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return row.toDomain(), nil
}

// GetLatest returns the n most recent trades by block number.
func (r *TradeRepo) GetLatest(ctx context.Context, n int) ([]*domain.TradeRecord, error) {
	return r.GetPage(ctx, storage.TradeFilter{}, storage.DefaultSort, n, 0)
}

// GetPage returns a filtered and sorted page of trades.
func (r *TradeRepo) GetPage(
	ctx context.Context,
	filter storage.TradeFilter,
	sort storage.Sort,
	limit, offset int,
) ([]*domain.TradeRecord, error) {
	if err := sort.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*domain.TradeRecord{}, nil
	}

	where, args := buildWhere(filter)
	dir := "ASC"
	if sort.Descending {
		dir = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT %s FROM transactions%s ORDER BY %s %s, hash %s LIMIT ? OFFSET ?`,
		selectTradeColumns, where, sort.Field, dir, dir,
	)
	args = append(args, limit, max(offset, 0))

	var rows []tradeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	trades := make([]*domain.TradeRecord, 0, len(rows))
	for i := range rows {
		trades = append(trades, rows[i].toDomain())
	}
	return trades, nil
}

// Count returns the number of trades matching the filter.
func (r *TradeRepo) Count(ctx context.Context, filter storage.TradeFilter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

// CountOutside counts trades outside [fromBlock, toBlock].
func (r *TradeRepo) CountOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM transactions WHERE block_number < ? OR block_number > ?`,
		int64(fromBlock), int64(toBlock))
	if err != nil {
		return 0, fmt.Errorf("failed to count trades outside range: %w", err)
	}
	return n, nil
}

// DeleteOutside removes trades outside [fromBlock, toBlock].
func (r *TradeRepo) DeleteOutside(ctx context.Context, fromBlock, toBlock uint64) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE block_number < ? OR block_number > ?`,
		int64(fromBlock), int64(toBlock))
	if err != nil {
		return 0, fmt.Errorf("failed to delete trades: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}
	return int(n), nil
}

// BlockSpan returns the lowest and highest stored block numbers.
func (r *TradeRepo) BlockSpan(ctx context.Context) (uint64, uint64, error) {
	var span struct {
		Low  int64 `db:"low"`
		High int64 `db:"high"`
	}
	err := r.db.GetContext(ctx, &span,
		`SELECT COALESCE(MIN(block_number), 0) AS low, COALESCE(MAX(block_number), 0) AS high FROM transactions`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read block span: %w", err)
	}
	return uint64(span.Low), uint64(span.High), nil
}

func buildWhere(f storage.TradeFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.SellToken != "" {
		add("sell_token = ?", f.SellToken)
	}
	if f.BuyToken != "" {
		add("buy_token = ?", f.BuyToken)
	}
	if f.Receiver != "" {
		add("receiver = ?", f.Receiver)
	}
	if f.Owner != "" {
		add("owner = ?", f.Owner)
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.FromBlock > 0 {
		add("block_number >= ?", int64(f.FromBlock))
	}
	if f.ToBlock > 0 {
		add("block_number <= ?", int64(f.ToBlock))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var _ storage.TradeRepository = (*TradeRepo)(nil)

package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the client does not exist or belongs to
// another owner.
var ErrNotFound = errors.New("clients: not found")

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `
	id, owner_id, name, email, phone, vat_number, tax_exempt, currency,
	payment_terms_days, address_line1, address_line2, city, country,
	notes, is_active, created_at, updated_at, archived_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.VATNumber,
		&c.TaxExempt, &c.Currency, &c.PaymentTermsDays, &c.AddressLine1,
		&c.AddressLine2, &c.City, &c.Country, &c.Notes, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt, &c.ArchivedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a client.
func (r *Repository) Create(ctx context.Context, c Client) (*Client, error) {
	query := `
		INSERT INTO clients (
			owner_id, name, email, phone, vat_number, tax_exempt, currency,
			payment_terms_days, address_line1, address_line2, city, country,
			notes, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, NOW(), NOW())
		RETURNING ` + clientColumns

	return scanClient(r.pool.QueryRow(ctx, query,
		c.OwnerID, c.Name, c.Email, c.Phone, c.VATNumber, c.TaxExempt,
		c.Currency, c.PaymentTermsDays, c.AddressLine1, c.AddressLine2,
		c.City, c.Country, c.Notes,
	))
}

// Get loads one client scoped to its owner.
func (r *Repository) Get(ctx context.Context, ownerID, id int64) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1 AND owner_id = $2`
	return scanClient(r.pool.QueryRow(ctx, query, id, ownerID))
}

// List returns clients matching the filters plus the unpaged total.
func (r *Repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	where := []string{"owner_id = $1"}
	args := []any{req.OwnerID}

	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if req.Search != nil && *req.Search != "" {
		args = append(args, "%"+*req.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		clientColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.VATNumber,
			&c.TaxExempt, &c.Currency, &c.PaymentTermsDays, &c.AddressLine1,
			&c.AddressLine2, &c.City, &c.Country, &c.Notes, &c.IsActive,
			&c.CreatedAt, &c.UpdatedAt, &c.ArchivedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update applies the non-nil fields and returns the updated row.
func (r *Repository) Update(ctx context.Context, ownerID, id int64, req UpdateClientRequest) (*Client, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{id, ownerID}

	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Email != nil {
		add("email", *req.Email)
	}
	if req.Phone != nil {
		add("phone", req.Phone)
	}
	if req.VATNumber != nil {
		add("vat_number", req.VATNumber)
	}
	if req.TaxExempt != nil {
		add("tax_exempt", *req.TaxExempt)
	}
	if req.Currency != nil {
		add("currency", *req.Currency)
	}
	if req.PaymentTermsDays != nil {
		add("payment_terms_days", *req.PaymentTermsDays)
	}
	if req.AddressLine1 != nil {
		add("address_line1", req.AddressLine1)
	}
	if req.AddressLine2 != nil {
		add("address_line2", req.AddressLine2)
	}
	if req.City != nil {
		add("city", req.City)
	}
	if req.Country != nil {
		add("country", req.Country)
	}
	if req.Notes != nil {
		add("notes", req.Notes)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}

	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $1 AND owner_id = $2 RETURNING %s`,
		strings.Join(set, ", "), clientColumns)
	return scanClient(r.pool.QueryRow(ctx, query, args...))
}

// Archive soft-deletes a client; invoices referencing it stay intact.
func (r *Repository) Archive(ctx context.Context, ownerID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET is_active = FALSE, archived_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND archived_at IS NULL`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

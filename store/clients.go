package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sessionscribe/sessionscribe/domain"
)

const clientColumns = `client_id, customer_id, name, email, phone,
	unique_identifier, created_at, updated_at`

// CreateClient inserts a new client. A missing client ID is generated.
func (s *Store) CreateClient(c *domain.Client) error {
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO clients (client_id, customer_id, name, email, phone, unique_identifier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ClientID, c.CustomerID, c.Name, c.Email, c.Phone, c.UniqueIdentifier,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetClient returns the client owned by customerID, or domain.ErrNotFound.
func (s *Store) GetClient(clientID, customerID string) (*domain.Client, error) {
	row := s.db.QueryRow(`
		SELECT `+clientColumns+`
		FROM clients
		WHERE client_id = ? AND customer_id = ?
	`, clientID, customerID)

	var c domain.Client
	err := row.Scan(&c.ClientID, &c.CustomerID, &c.Name, &c.Email, &c.Phone,
		&c.UniqueIdentifier, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client: %w", err)
	}
	return &c, nil
}

// ListClients returns all clients for a customer, newest first.
func (s *Store) ListClients(customerID string) ([]domain.Client, error) {
	rows, err := s.db.Query(`
		SELECT `+clientColumns+`
		FROM clients
		WHERE customer_id = ?
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ClientID, &c.CustomerID, &c.Name, &c.Email, &c.Phone,
			&c.UniqueIdentifier, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ClientUpdate lists the mutable client fields; nil means leave as is.
type ClientUpdate struct {
	Name             *string
	Email            *string
	Phone            *string
	UniqueIdentifier *string
}

// UpdateClient applies a partial update to a client owned by customerID.
func (s *Store) UpdateClient(clientID, customerID string, upd ClientUpdate) (*domain.Client, error) {
	var sets []string
	var args []any
	appendSet := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.Email != nil {
		appendSet("email", *upd.Email)
	}
	if upd.Phone != nil {
		appendSet("phone", *upd.Phone)
	}
	if upd.UniqueIdentifier != nil {
		appendSet("unique_identifier", *upd.UniqueIdentifier)
	}
	if len(sets) == 0 {
		return s.GetClient(clientID, customerID)
	}
	appendSet("updated_at", time.Now().UTC())
	args = append(args, clientID, customerID)

	res, err := s.db.Exec(
		`UPDATE clients SET `+strings.Join(sets, ", ")+` WHERE client_id = ? AND customer_id = ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrNotFound
	}
	return s.GetClient(clientID, customerID)
}

// DeleteClient removes a client owned by customerID. Sessions keep their
// client_id; history is not rewritten when a client record goes away.
func (s *Store) DeleteClient(clientID, customerID string) error {
	res, err := s.db.Exec(
		`DELETE FROM clients WHERE client_id = ? AND customer_id = ?`,
		clientID, customerID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClientOwned verifies that a client exists and belongs to customerID.
// Session creation checks this before accepting a client_id.
func (s *Store) ClientOwned(clientID, customerID string) error {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM clients WHERE client_id = ? AND customer_id = ?`,
		clientID, customerID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check client ownership: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

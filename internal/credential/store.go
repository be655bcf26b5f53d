package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Store persists role passwords and fingerprint slot state in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite-backed credential store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CheckPassword verifies a candidate password against every stored role.
//
// The keypad has no role selector, so a candidate is checked against
// both hashes and the matching role is reported. The admin hash is
// checked first so a (misconfigured) shared password resolves to the
// stronger role deterministically.
//
// Parameters:
//   - ctx: Context for cancellation
//   - candidate: Plaintext password as entered on the keypad
//
// Returns:
//   - Role: The role whose hash matched (zero value if none)
//   - bool: True if any role matched
//   - error: Database or hash decoding failure
func (s *Store) CheckPassword(ctx context.Context, candidate string) (Role, bool, error) {
	for _, role := range []Role{RoleAdmin, RoleUser} {
		hash, err := s.passwordHash(ctx, role)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return "", false, err
		}

		ok, err := VerifyPassword(candidate, hash)
		if err != nil {
			return "", false, fmt.Errorf("verifying %s password: %w", role, err)
		}
		if ok {
			return role, true, nil
		}
	}
	return "", false, nil
}

// SetPassword replaces the password for a role.
//
// Parameters:
//   - ctx: Context for cancellation
//   - role: admin or user
//   - password: New plaintext password (caller enforces minimum length)
//
// Returns:
//   - error: ErrInvalidRole, ErrRoleNotFound, or a database failure
func (s *Store) SetPassword(ctx context.Context, role Role, password string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ?, updated_at = ? WHERE role = ?`,
		hash, now, string(role),
	)
	if err != nil {
		return fmt.Errorf("updating %s password: %w", role, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}
	return nil
}

// passwordHash fetches the stored PHC hash for a role.
func (s *Store) passwordHash(ctx context.Context, role Role) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM credentials WHERE role = ?", string(role),
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrRoleNotFound, role)
		}
		return "", fmt.Errorf("loading %s password: %w", role, err)
	}
	return hash, nil
}

// Seed creates the default credentials on first boot if none exist.
//
// Defaults match the factory configuration (admin "1234", user "0000")
// and are logged with a warning so installers change them immediately.
func (s *Store) Seed(ctx context.Context, logger *slog.Logger) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials").Scan(&count); err != nil {
		return fmt.Errorf("checking credential count: %w", err)
	}
	if count > 0 {
		logger.Info("credentials exist, skipping seed")
		return nil
	}

	defaults := map[Role]string{
		RoleAdmin: "1234",
		RoleUser:  "0000",
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for role, password := range defaults {
		hash, err := HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing seed password for %s: %w", role, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO credentials (role, password_hash, updated_at) VALUES (?, ?, ?)`,
			string(role), hash, now,
		); err != nil {
			return fmt.Errorf("seeding %s credential: %w", role, err)
		}
	}

	logger.Warn("factory default credentials created",
		"roles", "admin, user",
		"action_required", "change both passwords immediately",
	)
	return nil
}

// ─── Fingerprint slots ───────────────────────────────────────────────

// AddSlot records a newly enrolled fingerprint template.
//
// Returns ErrInvalidSlot for slots outside 1-127 and ErrSlotOccupied
// if a template is already recorded in that slot.
func (s *Store) AddSlot(ctx context.Context, slot int, label string) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprint_slots (slot, label, enrolled_at) VALUES (?, ?, ?)`,
		slot, nullString(label), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %d", ErrSlotOccupied, slot)
		}
		return fmt.Errorf("recording fingerprint slot %d: %w", slot, err)
	}
	return nil
}

// DeleteSlot removes a fingerprint template record.
func (s *Store) DeleteSlot(ctx context.Context, slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM fingerprint_slots WHERE slot = ?", slot)
	if err != nil {
		return fmt.Errorf("deleting fingerprint slot %d: %w", slot, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrSlotNotFound, slot)
	}
	return nil
}

// DeleteAllSlots wipes every fingerprint template record and returns
// how many were removed. Deleting from an empty table is not an error.
func (s *Store) DeleteAllSlots(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM fingerprint_slots")
	if err != nil {
		return 0, fmt.Errorf("wiping fingerprint slots: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(rows), nil
}

// ListSlots returns all occupied slots ordered by slot number.
func (s *Store) ListSlots(ctx context.Context) ([]FingerprintSlot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slot, label, enrolled_at FROM fingerprint_slots ORDER BY slot ASC")
	if err != nil {
		return nil, fmt.Errorf("listing fingerprint slots: %w", err)
	}
	defer rows.Close()

	var slots []FingerprintSlot
	for rows.Next() {
		var fs FingerprintSlot
		var label sql.NullString
		var enrolledAt string
		if err := rows.Scan(&fs.Slot, &label, &enrolledAt); err != nil {
			return nil, fmt.Errorf("scanning fingerprint slot: %w", err)
		}
		if label.Valid {
			fs.Label = label.String
		}
		fs.EnrolledAt, _ = time.Parse(time.RFC3339, enrolledAt) //nolint:errcheck // format is controlled
		slots = append(slots, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprint slots: %w", err)
	}

	if slots == nil {
		slots = []FingerprintSlot{}
	}
	return slots, nil
}

// CountSlots returns the number of occupied template slots.
func (s *Store) CountSlots(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprint_slots").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting fingerprint slots: %w", err)
	}
	return count, nil
}

// NextFreeSlot returns the lowest unoccupied slot number.
//
// Returns ErrSlotsFull when all 127 slots hold templates.
func (s *Store) NextFreeSlot(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slot FROM fingerprint_slots ORDER BY slot ASC")
	if err != nil {
		return 0, fmt.Errorf("loading fingerprint slots: %w", err)
	}
	defer rows.Close()

	occupied := make(map[int]bool)
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return 0, fmt.Errorf("scanning fingerprint slot: %w", err)
		}
		occupied[slot] = true
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating fingerprint slots: %w", err)
	}

	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if !occupied[slot] {
			return slot, nil
		}
	}
	return 0, ErrSlotsFull
}

// HasSlot reports whether a template is recorded in the given slot.
func (s *Store) HasSlot(ctx context.Context, slot int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fingerprint_slots WHERE slot = ?", slot,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking fingerprint slot %d: %w", slot, err)
	}
	return count > 0, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE/PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

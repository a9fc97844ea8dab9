package ledger

import (
	"database/sql"

	"github.com/afritokeni/platform/pkg/errs"
)

// CreateUser inserts a new User row. Callers (C2) are responsible for
// format validation; Store only enforces uniqueness of phone/principal.
func (s *Store) CreateUser(callerToken string, u *User) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Phone != "" {
		if exists, err := s.userExistsByPhoneTx(u.Phone); err != nil {
			return err
		} else if exists {
			return errs.AlreadyExistsf("a user with this phone number already exists")
		}
	}
	if u.Principal != "" {
		if exists, err := s.userExistsByPrincipalTx(u.Principal); err != nil {
			return err
		} else if exists {
			return errs.AlreadyExistsf("a user with this principal already exists")
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO users (id, phone, principal, first_name, last_name, email,
			preferred_currency, user_type, kyc_status, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, nullable(u.Phone), nullable(u.Principal), u.FirstName, u.LastName,
		u.Email, u.PreferredCurrency, string(u.UserType), string(u.KycStatus),
		u.Language, u.CreatedAt)
	if err != nil {
		return errs.New(errs.Internal, "failed to create user")
	}

	s.log.WithField("user_id", u.ID).Info("user created")
	return nil
}

func (s *Store) userExistsByPhoneTx(phone string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM users WHERE phone = ?`, phone).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errs.New(errs.Internal, "failed to query users")
	}
	return true, nil
}

func (s *Store) userExistsByPrincipalTx(principal string) (bool, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM users WHERE principal = ?`, principal).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errs.New(errs.Internal, "failed to query users")
	}
	return true, nil
}

// GetUserByID reads a user by ID.
func (s *Store) GetUserByID(callerToken, id string) (*User, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	return s.scanUser(`id = ?`, id)
}

// GetUserByPhone reads a user by phone number.
func (s *Store) GetUserByPhone(callerToken, phone string) (*User, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	return s.scanUser(`phone = ?`, phone)
}

// GetUserByPrincipal reads a user by principal.
func (s *Store) GetUserByPrincipal(callerToken, principal string) (*User, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}
	return s.scanUser(`principal = ?`, principal)
}

func (s *Store) scanUser(where string, arg string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var phone, principal sql.NullString
	err := s.db.QueryRow(`
		SELECT id, phone, principal, first_name, last_name, email,
			preferred_currency, user_type, kyc_status, language, created_at
		FROM users WHERE `+where, arg).Scan(
		&u.ID, &phone, &principal, &u.FirstName, &u.LastName, &u.Email,
		&u.PreferredCurrency, &u.UserType, &u.KycStatus, &u.Language, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("user not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query user")
	}
	u.Phone = phone.String
	u.Principal = principal.String
	return &u, nil
}

// validKycTransitions is the KYC state machine (spec §4.2).
var validKycTransitions = map[KycStatus]map[KycStatus]bool{
	KycNotStarted: {KycPending: true},
	KycPending:    {KycApproved: true, KycRejected: true},
	KycRejected:   {KycPending: true},
}

// UpdateKycStatus transitions a user's KYC status. adminOverride allows the
// otherwise-forbidden NotStarted -> Approved shortcut (spec §4.2).
func (s *Store) UpdateKycStatus(callerToken, userID string, next KycStatus, adminOverride bool) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current KycStatus
	if err := s.db.QueryRow(`SELECT kyc_status FROM users WHERE id = ?`, userID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return errs.NotFoundf("user not found")
		}
		return errs.New(errs.Internal, "failed to query user")
	}

	allowed := validKycTransitions[current][next]
	if !allowed && adminOverride && current == KycNotStarted && next == KycApproved {
		allowed = true
	}
	if !allowed {
		return errs.Conflict(string(current))
	}

	if _, err := s.db.Exec(`UPDATE users SET kyc_status = ? WHERE id = ?`, string(next), userID); err != nil {
		return errs.New(errs.Internal, "failed to update kyc status")
	}
	return nil
}

// SetupPin creates or replaces a user's PIN record with an already-hashed
// PIN (hashing is C2's responsibility via bcrypt).
func (s *Store) SetupPin(callerToken, userID, pinHash string) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO pins (user_id, pin_hash, failed_attempts, locked_until)
		VALUES (?, ?, 0, NULL)
		ON CONFLICT(user_id) DO UPDATE SET pin_hash = excluded.pin_hash, failed_attempts = 0, locked_until = NULL
	`, userID, pinHash)
	if err != nil {
		return errs.New(errs.Internal, "failed to set up pin")
	}
	return nil
}

// GetPinRecord reads the PIN record for a user.
func (s *Store) GetPinRecord(callerToken, userID string) (*PinRecord, error) {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var pr PinRecord
	pr.UserID = userID
	var lockedUntil sql.NullInt64
	err := s.db.QueryRow(`SELECT pin_hash, failed_attempts, locked_until FROM pins WHERE user_id = ?`, userID).
		Scan(&pr.PinHash, &pr.FailedAttempts, &lockedUntil)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("pin record not found")
	}
	if err != nil {
		return nil, errs.New(errs.Internal, "failed to query pin record")
	}
	if lockedUntil.Valid {
		v := lockedUntil.Int64
		pr.LockedUntil = &v
	}
	return &pr, nil
}

// RecordPinFailure increments failed_attempts and, once it reaches
// maxAttempts, sets locked_until = now + cooldownSeconds.
func (s *Store) RecordPinFailure(callerToken, userID string, now int64, maxAttempts int, cooldownSeconds int64) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var attempts int
	if err := s.db.QueryRow(`SELECT failed_attempts FROM pins WHERE user_id = ?`, userID).Scan(&attempts); err != nil {
		if err == sql.ErrNoRows {
			return errs.NotFoundf("pin record not found")
		}
		return errs.New(errs.Internal, "failed to query pin record")
	}

	attempts++
	var lockedUntil interface{}
	if attempts >= maxAttempts {
		lockedUntil = now + cooldownSeconds
	}

	if _, err := s.db.Exec(`UPDATE pins SET failed_attempts = ?, locked_until = ? WHERE user_id = ?`,
		attempts, lockedUntil, userID); err != nil {
		return errs.New(errs.Internal, "failed to record pin failure")
	}
	return nil
}

// ResetPinFailures clears failed_attempts/locked_until after a successful verify.
func (s *Store) ResetPinFailures(callerToken, userID string) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`UPDATE pins SET failed_attempts = 0, locked_until = NULL WHERE user_id = ?`, userID); err != nil {
		return errs.New(errs.Internal, "failed to reset pin failures")
	}
	return nil
}

// LinkPhoneToAccount attaches phone to an existing principal-identified user.
func (s *Store) LinkPhoneToAccount(callerToken, userID, phone string) error {
	if _, err := s.verifyCaller(callerToken, TierAuthorizedCaller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if exists, err := s.userExistsByPhoneTx(phone); err != nil {
		return err
	} else if exists {
		return errs.AlreadyExistsf("phone number already linked to another account")
	}

	if _, err := s.db.Exec(`UPDATE users SET phone = ? WHERE id = ?`, phone, userID); err != nil {
		return errs.New(errs.Internal, "failed to link phone")
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

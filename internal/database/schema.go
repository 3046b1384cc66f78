package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is applied in order.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        name          VARCHAR(120) NOT NULL DEFAULT '',
        email         VARCHAR(255) NOT NULL,
        roll_number   VARCHAR(32)  NOT NULL,
        password_hash VARCHAR(255) NOT NULL,
        role          ENUM('STUDENT','ADMIN') NOT NULL DEFAULT 'STUDENT',
        is_active     TINYINT(1) NOT NULL DEFAULT 1,
        created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        UNIQUE KEY uq_users_email (email),
        UNIQUE KEY uq_users_roll_number (roll_number)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
        id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        user_id    BIGINT UNSIGNED NOT NULL,
        token_hash CHAR(64) NOT NULL,
        expires_at DATETIME NOT NULL,
        revoked_at DATETIME NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        UNIQUE KEY uq_refresh_token_hash (token_hash),
        KEY idx_refresh_user (user_id),
        CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
        id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        seat_number    VARCHAR(16) NOT NULL,
        floor          INT NOT NULL DEFAULT 0,
        status         ENUM('FREE','PENDING','ACTIVE') NOT NULL DEFAULT 'FREE',
        occupant_roll  VARCHAR(32) NULL,
        planned_start  DATETIME NULL,
        planned_expiry DATETIME NULL,
        updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        UNIQUE KEY uq_seats_number (seat_number),
        KEY idx_seats_occupant (occupant_roll, status),
        KEY idx_seats_status_start (status, planned_start),
        KEY idx_seats_status_expiry (status, planned_expiry),
        CONSTRAINT chk_seats_occupancy CHECK (
            (status = 'FREE' AND occupant_roll IS NULL AND planned_start IS NULL AND planned_expiry IS NULL)
            OR (status <> 'FREE' AND occupant_roll IS NOT NULL AND planned_start IS NOT NULL AND planned_expiry IS NOT NULL)
        )
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
        id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        seat_number      VARCHAR(16) NOT NULL,
        roll_number      VARCHAR(32) NOT NULL,
        start_time       DATETIME NOT NULL,
        end_time         DATETIME NOT NULL,
        duration_minutes INT NOT NULL DEFAULT 0,
        status           ENUM('COMPLETED','CANCELLED','NO_SHOW','ADMIN_FREED') NOT NULL,
        xp_earned        INT NOT NULL DEFAULT 0,
        created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_bookings_roll (roll_number, id),
        KEY idx_bookings_seat (seat_number, id),
        KEY idx_bookings_status (status, id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS entry_logs (
        id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
        roll_number VARCHAR(32) NOT NULL,
        seat_number VARCHAR(16) NOT NULL,
        entry_time  DATETIME NOT NULL,
        exit_time   DATETIME NULL,
        KEY idx_entry_open (roll_number, exit_time)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS library_settings (
        setting_key   VARCHAR(64) PRIMARY KEY,
        setting_value VARCHAR(255) NOT NULL,
        updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate step %d: %w", i+1, err)
		}
	}
	log.Printf("database: schema ready (%d tables)", len(schema))
	return nil
}

package database

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    username TEXT UNIQUE NOT NULL,
    wallet_balance_paisa BIGINT NOT NULL DEFAULT 0,
    blocked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS packages (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    amount INT NOT NULL DEFAULT 0,
    price_paisa BIGINT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    order_type TEXT NOT NULL,
    user_id UUID NOT NULL REFERENCES users(id),
    player_uid TEXT,
    package_id UUID,
    package_name TEXT,
    load_amount_paisa BIGINT NOT NULL DEFAULT 0,
    locked_price_paisa BIGINT NOT NULL DEFAULT 0,
    wallet_used_paisa BIGINT NOT NULL DEFAULT 0,
    payment_required_paisa BIGINT NOT NULL DEFAULT 0,
    payment_amount_paisa BIGINT NOT NULL DEFAULT 0,
    payment_received_paisa BIGINT NOT NULL DEFAULT 0,
    overpayment_paisa BIGINT NOT NULL DEFAULT 0,
    payment_last3digits TEXT,
    payment_method TEXT,
    payment_remark TEXT,
    payment_rrn TEXT,
    raw_message TEXT,
    sms_fingerprint TEXT,
    status TEXT NOT NULL DEFAULT 'pending_payment',
    automation_state TEXT,
    suspicious_reason TEXT,
    retry_count INT NOT NULL DEFAULT 0,
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    queued_at TIMESTAMPTZ,
    processing_started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    expired_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID NOT NULL REFERENCES users(id),
    type TEXT NOT NULL,
    amount_paisa BIGINT NOT NULL,
    order_id UUID,
    balance_before_paisa BIGINT NOT NULL,
    balance_after_paisa BIGINT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sms_messages (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    raw_message TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    amount_paisa BIGINT,
    last3digits TEXT,
    rrn TEXT,
    method TEXT,
    remark TEXT,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    matched_order_id UUID,
    suspicious BOOLEAN NOT NULL DEFAULT FALSE,
    suspicious_reason TEXT,
    parsed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    matched_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS fulfillment_accounts (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    password_encrypted TEXT NOT NULL,
    pin_encrypted TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    last_used TIMESTAMPTZ,
    created_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settings (
    id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    max_overpayment_ratio DOUBLE PRECISION NOT NULL,
    max_auto_credit_paisa BIGINT NOT NULL,
    order_expiry_hours INT NOT NULL,
    sms_suspicious_minutes INT NOT NULL,
    stuck_processing_minutes INT NOT NULL,
    max_fulfill_retries INT NOT NULL,
    breaker_failure_threshold INT NOT NULL,
    breaker_window_minutes INT NOT NULL,
    auto_match_enabled BOOLEAN NOT NULL,
    auto_fulfill_enabled BOOLEAN NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Duplicate payment evidence must never attach to two orders.
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_rrn
    ON orders(payment_rrn) WHERE payment_rrn IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_sms_fingerprint
    ON orders(sms_fingerprint) WHERE sms_fingerprint IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_sms_fingerprint ON sms_messages(fingerprint);
CREATE INDEX IF NOT EXISTS idx_sms_rrn ON sms_messages(rrn) WHERE rrn IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_match
    ON orders(payment_last3digits, payment_required_paisa) WHERE status IN ('pending_payment', 'manual_review');
CREATE INDEX IF NOT EXISTS idx_wallet_tx_user_id ON wallet_transactions(user_id);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

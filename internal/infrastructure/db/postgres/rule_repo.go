package pgdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

type ruleRepository struct {
	db *sql.DB
}

func NewRuleRepository(config ...interface{}) (domain.RuleRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open rule repository: invalid config")
	}
	return &ruleRepository{db}, nil
}

func (r *ruleRepository) SetTokenRules(ctx context.Context, rules domain.TokenRules) error {
	jurisdiction, err := marshalRule(rules.Jurisdiction)
	if err != nil {
		return err
	}
	investorType, err := marshalRule(rules.InvestorType)
	if err != nil {
		return err
	}
	holdingPeriod, err := marshalRule(rules.HoldingPeriod)
	if err != nil {
		return err
	}
	level, err := marshalRule(rules.Level)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO token_rules (
			token_id, jurisdiction, investor_type, holding_period, level,
			required_claims, update_policy, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token_id) DO UPDATE SET
			jurisdiction = EXCLUDED.jurisdiction,
			investor_type = EXCLUDED.investor_type,
			holding_period = EXCLUDED.holding_period,
			level = EXCLUDED.level,
			required_claims = EXCLUDED.required_claims,
			update_policy = EXCLUDED.update_policy,
			updated_at = EXCLUDED.updated_at`,
		rules.TokenID, jurisdiction, investorType, holdingPeriod, level,
		int64(rules.RequiredClaims), rules.UpdatePolicy, rules.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token rules: %w", err)
	}
	return nil
}

func (r *ruleRepository) GetTokenRules(
	ctx context.Context, tokenID string,
) (*domain.TokenRules, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token_id, jurisdiction, investor_type, holding_period, level,
			required_claims, update_policy, updated_at
		FROM token_rules WHERE token_id = $1`, tokenID,
	)

	var rules domain.TokenRules
	var jurisdiction, investorType, holdingPeriod, level []byte
	var requiredClaims int64
	err := row.Scan(
		&rules.TokenID, &jurisdiction, &investorType, &holdingPeriod, &level,
		&requiredClaims, &rules.UpdatePolicy, &rules.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rules.RequiredClaims = uint64(requiredClaims)
	if err := unmarshalRule(jurisdiction, &rules.Jurisdiction); err != nil {
		return nil, err
	}
	if err := unmarshalRule(investorType, &rules.InvestorType); err != nil {
		return nil, err
	}
	if err := unmarshalRule(holdingPeriod, &rules.HoldingPeriod); err != nil {
		return nil, err
	}
	if err := unmarshalRule(level, &rules.Level); err != nil {
		return nil, err
	}
	return &rules, nil
}

func marshalRule(rule any) ([]byte, error) {
	buf, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize rule: %w", err)
	}
	return buf, nil
}

func unmarshalRule[T any](buf []byte, target *T) error {
	if len(buf) == 0 || string(buf) == "null" {
		return nil
	}
	if err := json.Unmarshal(buf, target); err != nil {
		return fmt.Errorf("failed to deserialize rule: %w", err)
	}
	return nil
}

func (r *ruleRepository) AddTrustedContract(ctx context.Context, contract string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_contract (contract, added_at) VALUES ($1, $2)
		ON CONFLICT (contract) DO NOTHING`,
		contract, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add trusted contract: %w", err)
	}
	return nil
}

func (r *ruleRepository) RemoveTrustedContract(ctx context.Context, contract string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM trusted_contract WHERE contract = $1`, contract,
	)
	return err
}

func (r *ruleRepository) IsTrustedContract(ctx context.Context, contract string) (bool, error) {
	var exists bool
	row := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trusted_contract WHERE contract = $1)`, contract,
	)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ruleRepository) GetTrustedContracts(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT contract FROM trusted_contract ORDER BY added_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()

	contracts := make([]string, 0)
	for rows.Next() {
		var contract string
		if err := rows.Scan(&contract); err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ruleRepository) Close() {
	// nolint:all
	r.db.Close()
}

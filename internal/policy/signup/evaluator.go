// Package signup evaluates the registration email allow/deny policy using OPA Rego.
package signup

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "github.com/conversegy/saas-starter-kit/internal/user/domain"
)

const policyQuery = "data.starter.signup.allow"

// Default Rego policy: a blocked domain always loses; an empty allow-list
// admits any well-formed domain, a non-empty one admits only its members.
const defaultRegoPolicy = `package starter.signup

default allow = false

blocked if {
	some d in input.policy.blocked_domains
	d == input.email.domain
}

domain_allowed if {
	count(input.policy.allowed_domains) == 0
}

domain_allowed if {
	some d in input.policy.allowed_domains
	d == input.email.domain
}

allow if {
	input.email.domain != ""
	not blocked
	domain_allowed
}
`

// Evaluator decides whether an email address may register, based on the
// configured domain lists. The policy is compiled once at construction.
type Evaluator struct {
	allowedDomains []string
	blockedDomains []string
	compiler       *ast.Compiler
}

// NewEvaluator returns an evaluator for the given allow/deny domain lists.
// Both lists are expected lowercased (config normalizes them).
func NewEvaluator(allowedDomains, blockedDomains []string) (*Evaluator, error) {
	modules := map[string]string{"signup.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile signup policy: %w", err)
	}
	return &Evaluator{
		allowedDomains: allowedDomains,
		blockedDomains: blockedDomains,
		compiler:       compiler,
	}, nil
}

// EmailAllowed reports whether the email's domain passes the policy.
// A malformed email (no domain part) is never allowed.
func (e *Evaluator) EmailAllowed(ctx context.Context, email string) (bool, error) {
	domain := userdomain.EmailDomain(email)

	input := map[string]interface{}{
		"email": map[string]interface{}{
			"address": email,
			"domain":  domain,
		},
		"policy": map[string]interface{}{
			"allowed_domains": toInterfaceList(e.allowedDomains),
			"blocked_domains": toInterfaceList(e.blockedDomains),
		},
	}

	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval signup policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("signup policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("signup policy returned non-boolean %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}

// HealthCheck verifies that the in-process Rego engine can evaluate the policy.
func (e *Evaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EmailAllowed(ctx, "healthcheck@example.com")
	return err
}

func toInterfaceList(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

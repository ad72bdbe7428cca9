package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	actordomain "apflow/internal/actor/domain"
	"apflow/internal/policy/repository"
)

// Default Rego policy: roles that can move money authenticate with MFA, and
// any actor without a phone on file cannot be challenged, so is exempt.
const defaultRegoPolicy = `package apflow.login

default mfa_required = false

mfa_required if {
	input.actor.has_phone
	input.actor.role in {"admin", "operations", "finance"}
}
`

// OPAEvaluator evaluates login policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be
// nil; then only the default policy applies.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the default policy. Does not touch the policy repo.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.apflow.login.mfa_required"),
		rego.Compiler(compiler),
		rego.Input(map[string]interface{}{
			"actor": map[string]interface{}{"id": "", "role": "", "department_id": "", "has_phone": false},
		}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateLogin evaluates the department's enabled policies, falling back to
// the default policy when none exist or evaluation fails. Policy problems
// never block a login outright; the fallback decides.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, profile *actordomain.Profile) (LoginResult, error) {
	input := buildInput(profile)

	var policies []string
	if e.policyRepo != nil && profile != nil {
		enabled, err := e.policyRepo.GetEnabledByDepartment(ctx, profile.DepartmentID)
		if err != nil {
			log.Printf("policy: failed to load policies for department %s: %v", profile.DepartmentID, err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return e.evaluateDefault(ctx, input)
	}
	return result, nil
}

func buildInput(profile *actordomain.Profile) map[string]interface{} {
	actor := map[string]interface{}{
		"id":            "",
		"role":          "",
		"department_id": "",
		"has_phone":     false,
	}
	if profile != nil {
		actor["id"] = profile.ID
		actor["role"] = string(profile.Role)
		actor["department_id"] = profile.DepartmentID
		actor["has_phone"] = profile.Phone != ""
	}
	return map[string]interface{}{"actor": actor}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (LoginResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := LoginResult{}
	q := rego.New(
		rego.Query("data.apflow.login.mfa_required"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return LoginResult{}, fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		if v, ok := rs[0].Expressions[0].Value.(bool); ok {
			out.MFARequired = v
		}
	}
	return out, nil
}

func (e *OPAEvaluator) evaluateDefault(ctx context.Context, input map[string]interface{}) (LoginResult, error) {
	result, err := e.evaluatePolicies(ctx, []string{defaultRegoPolicy}, input)
	if err != nil {
		return LoginResult{}, err
	}
	return result, nil
}

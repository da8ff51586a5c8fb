package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/fatih/structs"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"

	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/errors"
)

const (
	policyPackage = "http.authz.lis"
)

var (
	//go:embed policy.rego
	authzPolicy string

	ErrUnauthorized = fmt.Errorf("%w: the subject is not authorized for the requested action", errors.Forbidden)
)

type RequestAuthorizer interface {
	Authorize(context.Context, *openapi3filter.AuthenticationInput) error
	EvaluatePolicy(context.Context, map[string]interface{}) error
}

func NewRequestAuthorizer(logger *zap.SugaredLogger) (RequestAuthorizer, error) {
	compiler, err := ast.CompileModules(map[string]string{
		"policy.rego": authzPolicy,
	})
	if err != nil {
		return nil, err
	}

	return &embeddedOpaAuthorizer{
		logger: logger,
		policy: compiler,
	}, nil
}

type embeddedOpaAuthorizer struct {
	logger *zap.SugaredLogger
	policy *ast.Compiler
}

// Authorize is invoked by the request validator for every operation with a security
// requirement. The identity was attached to the request by the authentication middleware.
func (e *embeddedOpaAuthorizer) Authorize(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	request := input.RequestValidationInput.Request

	in := map[string]interface{}{
		"path":   splitPath(request.URL.Path),
		"method": strings.ToUpper(request.Method),
	}

	if data := auth.GetAuthData(request.Context()); data != nil {
		in["auth"] = structs.New(*data).Map()
	}

	return e.EvaluatePolicy(ctx, in)
}

func (e *embeddedOpaAuthorizer) EvaluatePolicy(ctx context.Context, input map[string]interface{}) error {
	r := rego.New(
		rego.Package(policyPackage),
		rego.Query("allow"),
		rego.Compiler(e.policy),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return fmt.Errorf("unable to evaluate authorization policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return fmt.Errorf("evaluating authorization policy returned no results")
	}

	val, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return fmt.Errorf("unexpected authorization result: %v", results[0].Expressions[0].Value)
	}

	e.logger.Debugw("authorization policy eval", zap.Any("input", input), zap.Bool("allow", val))

	if !val {
		return ErrUnauthorized
	}

	return nil
}

func splitPath(p string) []string {
	path := strings.Split(strings.Trim(p, "/"), "/")
	if len(path) == 1 && path[0] == "" {
		return []string{}
	}
	return path
}

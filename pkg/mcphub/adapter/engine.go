package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mcphub-io/mcphub/pkg/corekit"
)

// Result is the adapter's uniform outcome, mirroring the hub's ToolResult
// shape without importing the mcphub package (keeps adapter dependency-free
// of the router).
type Result struct {
	Text    string
	IsError bool
}

// Engine executes ApiToolConfig tools end to end.
type Engine struct {
	client *resty.Client
	cache  *Cache
	env    corekit.EnvMap

	compiledSuccess map[string]*Expr
	compiledJSONata map[string]*Expr
}

func NewEngine(env corekit.EnvMap) *Engine {
	client := resty.New().
		SetHeader("Accept", "application/json")
	return &Engine{
		client:          client,
		cache:           NewCache(defaultCacheSize),
		env:             env,
		compiledSuccess: make(map[string]*Expr),
		compiledJSONata: make(map[string]*Expr),
	}
}

func (e *Engine) Close() { e.cache.Close() }

// Execute runs the full eight-step pipeline for one tool invocation:
// validate args, build the request, apply auth, check the cache, run with
// retry, classify the outcome, transform the response, and cache on success.
func (e *Engine) Execute(ctx context.Context, cfg *ApiToolConfig, args map[string]any) (*Result, error) {
	if cfg.Disabled {
		return errorResult(fmt.Sprintf("工具已禁用: %s", cfg.DisabledWhy)), nil
	}

	// 1. Validate.
	if verrs := Validate(args, cfg.Parameters); len(verrs) > 0 {
		return errorResult(fmt.Sprintf("参数验证失败: %s", formatValidationErrors(verrs))), nil
	}

	// 2. Build request.
	url, err := resolveOne(cfg.API.URL, args, e.env)
	if err != nil {
		return nil, configError(err)
	}
	headers, err := ResolveStringMap(cfg.API.Headers, args, e.env)
	if err != nil {
		return nil, configError(err)
	}
	query, err := Resolve(cfg.API.QueryParams, args, e.env)
	if err != nil {
		return nil, configError(err)
	}
	body, err := Resolve(cfg.API.Body, args, e.env)
	if err != nil {
		return nil, configError(err)
	}

	// 3. Apply authentication.
	httpHeaders := http.Header{}
	for k, v := range headers {
		httpHeaders.Set(k, v)
	}
	if err := ApplyAuth(httpHeaders, cfg.Security.Authentication); err != nil {
		return nil, configError(err)
	}

	// 4. Cache lookup.
	var cacheKey string
	if cfg.Cache.Enabled {
		cacheKey = corekit.CacheKey(cfg.ID, args)
		if cached, ok := e.cache.Get(cacheKey); ok {
			return cached.(*Result), nil
		}
	}

	// 5. Execute with retry.
	status, respBody, err := e.doWithRetry(ctx, cfg, url, httpHeaders, query, body)
	if err != nil {
		return nil, err
	}

	// 6. Classify.
	result, decoded, isError := e.classify(cfg, status, respBody)

	// 7. Post-transform, only on success.
	if !isError && cfg.Response.JSONata != "" {
		transformed, err := e.transform(cfg, status, decoded)
		if err != nil {
			return errorResult(fmt.Sprintf("响应转换失败: %s", err.Error())), nil
		}
		result = transformed
	}

	// 8. Cache store.
	final := &Result{Text: result, IsError: isError}
	if cfg.Cache.Enabled && (!isError || cfg.Cache.CacheErrors) {
		e.cache.Set(cacheKey, final, cfg.Cache.TTL(5*time.Minute))
	}
	return final, nil
}

func resolveOne(s string, args map[string]any, env corekit.EnvMap) (string, error) {
	v, err := Resolve(s, args, env)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

func configError(err error) error {
	return fmt.Errorf("configuration error: %w", err)
}

func errorResult(text string) *Result { return &Result{Text: text, IsError: true} }

func formatValidationErrors(errs []ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return out
}

// doWithRetry executes the HTTP call, retrying connect errors, read
// timeouts, 5xx, and 429 with base-1s*2^n backoff capped at 10s. Max attempts = retries+1 (default 3+1 => 4 total).
func (e *Engine) doWithRetry(
	ctx context.Context,
	cfg *ApiToolConfig,
	url string,
	headers http.Header,
	query any,
	body any,
) (int, []byte, error) {
	retries := cfg.API.Retries
	if retries <= 0 {
		retries = 3
	}
	maxAttempts := retries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, cfg.API.Timeout())
		req := e.client.R().SetContext(reqCtx)
		for k := range headers {
			req.SetHeader(k, headers.Get(k))
		}
		if qs, ok := query.(map[string]any); ok {
			for k, v := range qs {
				req.SetQueryParam(k, stringify(v))
			}
		}
		if body != nil {
			req.SetBody(body)
		}

		resp, err := dispatch(req, string(cfg.API.Method), url)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}
		status := resp.StatusCode()
		if status >= 500 || status == 429 {
			lastErr = fmt.Errorf("retriable status %d", status)
			continue
		}
		return status, resp.Body(), nil
	}
	return 0, nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

func dispatch(req *resty.Request, method, url string) (*resty.Response, error) {
	switch method {
	case "POST":
		return req.Post(url)
	case "PUT":
		return req.Put(url)
	case "DELETE":
		return req.Delete(url)
	default:
		return req.Get(url)
	}
}

// classify determines success per successCondition (default 2xx), extracting
// an error body at errorPath on failure.
func (e *Engine) classify(cfg *ApiToolConfig, status int, raw []byte) (text string, decoded any, isError bool) {
	var parsed any
	_ = json.Unmarshal(raw, &parsed)

	success := defaultSuccessCondition(status)
	if cfg.Response.SuccessCondition != "" {
		if expr, err := e.successExpr(cfg); err == nil {
			if ok, err := expr.EvalBool(status, parsed); err == nil {
				success = ok
			}
		}
	}

	if success {
		return string(raw), parsed, false
	}

	if cfg.Response.ErrorPath != "" {
		if m, ok := parsed.(map[string]any); ok {
			if v := lookupPath(m, cfg.Response.ErrorPath); v != nil {
				return stringify(v), parsed, true
			}
		}
	}
	return string(raw), parsed, true
}

func (e *Engine) successExpr(cfg *ApiToolConfig) (*Expr, error) {
	if expr, ok := e.compiledSuccess[cfg.ID]; ok {
		return expr, nil
	}
	expr, err := Compile(cfg.Response.SuccessCondition)
	if err != nil {
		return nil, err
	}
	e.compiledSuccess[cfg.ID] = expr
	return expr, nil
}

// transform evaluates response.jsonata (CEL-backed, see expr.go) against the
// decoded body and re-serializes the result as a single text block.
func (e *Engine) transform(cfg *ApiToolConfig, status int, decoded any) (string, error) {
	expr, ok := e.compiledJSONata[cfg.ID]
	if !ok {
		var err error
		expr, err = Compile(cfg.Response.JSONata)
		if err != nil {
			return "", err
		}
		e.compiledJSONata[cfg.ID] = expr
	}
	out, err := expr.EvalValue(status, decoded)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

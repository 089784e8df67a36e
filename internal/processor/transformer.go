package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"tabletrace/internal/config"
	"tabletrace/internal/models"
)

// ErrEventRejected is returned when the transform script returns null or
// undefined for an event.
var ErrEventRejected = errors.New("event rejected by transformer")

// Payload is the outbound form of a change record.
type Payload struct {
	SessionID string             `json:"session_id"`
	Event     models.ChangeEvent `json:"event"`
	Diffs     []models.RowDiff   `json:"diffs"`
}

// Transformer filters row diffs by column rules and shapes outbound payloads,
// optionally through a JavaScript transform function.
type Transformer struct {
	config    *config.ProcessorConfig
	logger    *logrus.Logger
	rules     []*RuleMatcher
	program   *goja.Program
	natsConn  *nats.Conn
	sessionID string
}

// RuleMatcher restricts which columns count as changed for matching tables.
type RuleMatcher struct {
	schema  string
	table   string
	include map[string]bool
	exclude map[string]bool
}

// NewTransformer builds a transformer. natsConn may be nil, in which case the
// script has no nats binding.
func NewTransformer(cfg *config.ProcessorConfig, logger *logrus.Logger, natsConn *nats.Conn) (*Transformer, error) {
	t := &Transformer{
		config:    cfg,
		logger:    logger,
		natsConn:  natsConn,
		sessionID: uuid.NewString(),
	}
	if cfg == nil || !cfg.Enabled {
		return t, nil
	}

	if cfg.Script != "" {
		src, err := os.ReadFile(cfg.Script)
		if err != nil {
			return nil, fmt.Errorf("failed to read JavaScript script file: %w", err)
		}
		program, err := goja.Compile(cfg.Script, string(src), false)
		if err != nil {
			return nil, fmt.Errorf("failed to compile JavaScript script: %w", err)
		}
		if _, err := resolveTransform(goja.New(), program); err != nil {
			return nil, fmt.Errorf("invalid JavaScript script: %w", err)
		}
		t.program = program
		logger.Infof("Loaded JavaScript transformation script: %s", cfg.Script)
	}

	for _, rule := range cfg.Rules {
		m := &RuleMatcher{
			schema:  rule.Schema,
			table:   rule.Table,
			include: lowerSet(rule.Include),
			exclude: lowerSet(rule.Exclude),
		}
		t.rules = append(t.rules, m)
	}
	return t, nil
}

// SessionID identifies this process in every payload.
func (t *Transformer) SessionID() string { return t.sessionID }

func lowerSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

func (r *RuleMatcher) matches(table models.TableID) bool {
	if r.schema != "" && !strings.EqualFold(r.schema, table.Schema) {
		return false
	}
	if r.table != "" && !strings.EqualFold(r.table, table.Table) {
		return false
	}
	return true
}

func (r *RuleMatcher) keeps(column string) bool {
	c := strings.ToLower(column)
	if len(r.exclude) > 0 && r.exclude[c] {
		return false
	}
	if len(r.include) > 0 && !r.include[c] {
		return false
	}
	return true
}

// FilterDiffs applies the first rule matching table. Columns the rule drops
// disappear from the changed set and from the row images, except the key
// column. A modified diff left without changed columns is dropped.
func (t *Transformer) FilterDiffs(table models.TableID, diffs []models.RowDiff) []models.RowDiff {
	if t.config == nil || !t.config.Enabled {
		return diffs
	}

	var rule *RuleMatcher
	for _, r := range t.rules {
		if r.matches(table) {
			rule = r
			break
		}
	}
	if rule == nil {
		return diffs
	}

	out := make([]models.RowDiff, 0, len(diffs))
	for _, d := range diffs {
		var changed []string
		for _, col := range d.ChangedColumns {
			if rule.keeps(col) {
				changed = append(changed, col)
			}
		}
		if d.Kind == models.Modified && len(changed) == 0 {
			t.logger.Debugf("Dropping %s row %s: only ignored columns changed", table, d.KeyValue)
			continue
		}

		d.ChangedColumns = changed
		d.Old = project(d.Old, rule, d.KeyColumn)
		d.New = project(d.New, rule, d.KeyColumn)
		out = append(out, d)
	}
	return out
}

func project(row *models.Row, rule *RuleMatcher, keyColumn string) *models.Row {
	if row == nil {
		return nil
	}
	var columns, values []string
	for _, col := range row.Columns() {
		if col == keyColumn || rule.keeps(col) {
			columns = append(columns, col)
			values = append(values, row.Value(col))
		}
	}
	projected := models.NewRow(columns, values)
	return &projected
}

// Encode renders a change record as the JSON payload sent to sinks. With a
// script configured, the payload is passed through its transform function.
func (t *Transformer) Encode(record *models.ChangeRecord) ([]byte, error) {
	payload := Payload{
		SessionID: t.sessionID,
		Event:     record.Event,
		Diffs:     record.Diffs,
	}
	if payload.Diffs == nil {
		payload.Diffs = []models.RowDiff{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change record: %w", err)
	}

	if t.program == nil || t.config == nil || !t.config.Enabled {
		return data, nil
	}
	return t.transformWithJavaScript(record, data)
}

// resolveTransform runs the program and returns the transform function: the
// value of the script itself when it evaluates to a function, else a global
// named transform.
func resolveTransform(vm *goja.Runtime, program *goja.Program) (goja.Callable, error) {
	result, err := vm.RunProgram(program)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", err)
	}
	if result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
		if fn, ok := goja.AssertFunction(result); ok {
			return fn, nil
		}
	}
	if v := vm.Get("transform"); v != nil {
		if fn, ok := goja.AssertFunction(v); ok {
			return fn, nil
		}
	}
	return nil, errors.New("script must evaluate to a function or define a 'transform' function")
}

func (t *Transformer) transformWithJavaScript(record *models.ChangeRecord, data []byte) ([]byte, error) {
	t.logger.Debugf("Transforming change #%d with JavaScript", record.Event.ID)

	// goja.Runtime is not safe for reuse across goroutines, so every event
	// gets its own.
	vm := goja.New()
	if err := t.setupConsoleBindings(vm); err != nil {
		return nil, fmt.Errorf("failed to setup console bindings: %w", err)
	}
	if t.natsConn != nil {
		if err := t.setupNATSBindings(vm); err != nil {
			return nil, fmt.Errorf("failed to setup NATS bindings: %w", err)
		}
	}

	transform, err := resolveTransform(vm, t.program)
	if err != nil {
		return nil, err
	}

	if err := vm.Set("eventJSON", string(data)); err != nil {
		return nil, fmt.Errorf("failed to set event JSON: %w", err)
	}
	event, err := vm.RunString("JSON.parse(eventJSON)")
	if err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}

	result, err := transform(goja.Undefined(), event)
	if err != nil {
		return nil, fmt.Errorf("JavaScript transform function error: %w", err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		t.logger.Infof("Change #%d rejected by JavaScript transformer", record.Event.ID)
		return nil, ErrEventRejected
	}

	out, err := json.Marshal(result.Export())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transform result: %w", err)
	}
	t.logger.Debugf("JavaScript transformation result: %s", string(out))
	return out, nil
}

func (t *Transformer) setupConsoleBindings(vm *goja.Runtime) error {
	console := vm.NewObject()
	bind := func(name string, logf func(args ...interface{})) error {
		return console.Set(name, func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			logf(fmt.Sprint(args...))
			return goja.Undefined()
		})
	}

	for name, logf := range map[string]func(args ...interface{}){
		"log":   t.logger.Info,
		"info":  t.logger.Info,
		"warn":  t.logger.Warn,
		"error": t.logger.Error,
		"debug": t.logger.Debug,
	} {
		if err := bind(name, logf); err != nil {
			return fmt.Errorf("failed to set console.%s: %w", name, err)
		}
	}
	return vm.Set("console", console)
}

// toBytes converts a script value to a message body: strings pass through,
// everything else is JSON encoded.
func toBytes(v goja.Value) ([]byte, error) {
	switch x := v.Export().(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	default:
		return json.Marshal(x)
	}
}

func (t *Transformer) setupNATSBindings(vm *goja.Runtime) error {
	natsObj := vm.NewObject()

	publish := func(call goja.FunctionCall) goja.Value {
		subject := call.Argument(0).String()
		arg := call.Argument(1)
		if subject == "" || goja.IsUndefined(arg) || goja.IsNull(arg) {
			panic(vm.NewTypeError("nats.publish: subject and data are required"))
		}
		data, err := toBytes(arg)
		if err != nil {
			panic(vm.NewTypeError("nats.publish: failed to marshal data: %v", err))
		}
		if err := t.natsConn.Publish(subject, data); err != nil {
			t.logger.Errorf("NATS publish error: %v", err)
			panic(vm.NewGoError(err))
		}
		t.logger.Debugf("Published to NATS subject: %s", subject)
		return goja.Undefined()
	}
	if err := natsObj.Set("publish", publish); err != nil {
		return fmt.Errorf("failed to set publish function: %w", err)
	}

	bucket := func(call goja.FunctionCall, op string) (nats.KeyValue, string) {
		name, key := call.Argument(0).String(), call.Argument(1).String()
		if name == "" || key == "" {
			panic(vm.NewTypeError("nats.kv.%s: bucket and key are required", op))
		}
		js, err := t.natsConn.JetStream()
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("failed to get JetStream context: %w", err)))
		}
		kv, err := js.KeyValue(name)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("failed to get KV store '%s': %w", name, err)))
		}
		return kv, key
	}

	kvObj := vm.NewObject()
	kvFuncs := map[string]func(goja.FunctionCall) goja.Value{
		"get": func(call goja.FunctionCall) goja.Value {
			kv, key := bucket(call, "get")
			entry, err := kv.Get(key)
			if errors.Is(err, nats.ErrKeyNotFound) {
				return goja.Null()
			}
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(string(entry.Value()))
		},
		"put": func(call goja.FunctionCall) goja.Value {
			kv, key := bucket(call, "put")
			value := call.Argument(2)
			if goja.IsUndefined(value) || goja.IsNull(value) {
				panic(vm.NewTypeError("nats.kv.put: value is required"))
			}
			data, err := toBytes(value)
			if err != nil {
				panic(vm.NewTypeError("nats.kv.put: failed to marshal value: %v", err))
			}
			if _, err := kv.Put(key, data); err != nil {
				panic(vm.NewGoError(err))
			}
			return goja.Undefined()
		},
		"delete": func(call goja.FunctionCall) goja.Value {
			kv, key := bucket(call, "delete")
			if err := kv.Delete(key); err != nil {
				panic(vm.NewGoError(err))
			}
			return goja.Undefined()
		},
	}
	for name, fn := range kvFuncs {
		if err := kvObj.Set(name, fn); err != nil {
			return fmt.Errorf("failed to set KV %s function: %w", name, err)
		}
	}
	if err := natsObj.Set("kv", kvObj); err != nil {
		return fmt.Errorf("failed to set KV object: %w", err)
	}

	return vm.Set("nats", natsObj)
}

// ValidateRules checks the processor configuration before startup.
func ValidateRules(cfg *config.ProcessorConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.Script != "" {
		if _, err := os.Stat(cfg.Script); os.IsNotExist(err) {
			return fmt.Errorf("JavaScript script file not found: %s", cfg.Script)
		}
	}
	for i, rule := range cfg.Rules {
		if len(rule.Include) > 0 && len(rule.Exclude) > 0 {
			return fmt.Errorf("processor rule %d: cannot specify both 'include' and 'exclude' fields", i)
		}
	}
	return nil
}

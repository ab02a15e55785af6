package jsonapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ohler55/ojg/jp"
)

// Rule is one entry of a merged rule set.
type Rule struct {
	Path string
	Expr string
	// Required rules fail when the path is absent. Other rules are only
	// checked when the path is present in the body.
	Required bool
}

// RequestValidator checks inbound documents: envelope structure first, then
// the structural rules merged with the type's create or update rules.
type RequestValidator struct {
	registry *Registry
	validate *validator.Validate
	paths    map[string]jp.Expr
}

// NewRequestValidator compiles every configured rule. A rule using an
// unknown validator tag is a configuration error.
func NewRequestValidator(registry *Registry) (*RequestValidator, error) {
	v := &RequestValidator{
		registry: registry,
		validate: validator.New(),
		paths:    make(map[string]jp.Expr),
	}
	if err := v.validate.RegisterValidation("string", isString, true); err != nil {
		return nil, fmt.Errorf("register string rule: %w", err)
	}
	if err := v.validate.RegisterValidation("integer", isInteger, true); err != nil {
		return nil, fmt.Errorf("register integer rule: %w", err)
	}

	for _, method := range []string{http.MethodPost, http.MethodPatch} {
		for path := range structuralRules(method) {
			v.paths[path] = compilePath(path)
		}
	}
	for _, typ := range registry.Types() {
		cfg, _ := registry.Config(typ)
		for _, rs := range []RuleSet{cfg.Rules.Create, cfg.Rules.Update} {
			for path, expr := range rs {
				if err := v.checkExpr(expr); err != nil {
					return nil, fmt.Errorf("%w: %s rule for %s: %v", ErrInvalidConfig, typ, path, err)
				}
				v.paths[path] = compilePath(path)
			}
		}
	}
	return v, nil
}

// checkExpr runs expr once so that undefined tags fail at start-up rather
// than panicking inside a request.
func (v *RequestValidator) checkExpr(expr string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	_ = v.validate.Var("", expr)
	return nil
}

func compilePath(path string) jp.Expr {
	x := jp.R()
	for _, seg := range strings.Split(path, ".") {
		x = x.C(seg)
	}
	return x
}

func (v *RequestValidator) lookup(doc any, path string) (any, bool) {
	x, ok := v.paths[path]
	if !ok {
		x = compilePath(path)
	}
	got := x.Get(doc)
	if len(got) == 0 {
		return nil, false
	}
	return got[0], true
}

// ValidateStructure enforces the JSON:API envelope for a create (POST) or
// update (PATCH) request.
func (v *RequestValidator) ValidateStructure(body any, method string) error {
	data, err := primaryData(body)
	if err != nil {
		return err
	}

	typ, ok := data["type"].(string)
	if !ok || typ == "" {
		return NewError(ErrMalformedDocument, "resource object must have a string type").AtPointer("/data/type")
	}
	cfg, err := v.registry.Config(typ)
	if err != nil {
		return err.(*Error).AtPointer("/data/type")
	}

	switch method {
	case http.MethodPost:
		// A client-supplied id is ignored on create.
	case http.MethodPatch:
		if id, ok := data["id"].(string); !ok || id == "" {
			return NewError(ErrMalformedDocument, "resource object must have a string id").AtPointer("/data/id")
		}
	default:
		return NewError(ErrMalformedDocument, "method %s does not accept a resource document", method)
	}

	attrs, present := data["attributes"]
	if !present {
		return NewError(ErrMalformedDocument, "resource object must have attributes").AtPointer("/data/attributes")
	}
	if _, ok := attrs.(map[string]any); !ok {
		return NewError(ErrMalformedDocument, "attributes must be an object").AtPointer("/data/attributes")
	}

	if rels, present := data["relationships"]; present {
		return v.validateRelationships(cfg, rels)
	}
	return nil
}

func primaryData(body any) (map[string]any, error) {
	doc, ok := body.(map[string]any)
	if !ok {
		return nil, NewError(ErrMalformedDocument, "document must be a JSON object")
	}
	raw, present := doc["data"]
	if !present {
		return nil, NewError(ErrMalformedDocument, "document must contain data").AtPointer("/data")
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, NewError(ErrMalformedDocument, "data must be a resource object").AtPointer("/data")
	}
	return data, nil
}

func (v *RequestValidator) validateRelationships(cfg *ResourceTypeConfig, raw any) error {
	rels, ok := raw.(map[string]any)
	if !ok {
		return NewError(ErrMalformedDocument, "relationships must be an object").AtPointer("/data/relationships")
	}
	names := make([]string, 0, len(rels))
	for name := range rels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pointer := "/data/relationships/" + name
		obj, ok := rels[name].(map[string]any)
		if !ok {
			return NewError(ErrMalformedDocument, "relationship must be an object").AtPointer(pointer)
		}
		linkage, present := obj["data"]
		if !present {
			return NewError(ErrMalformedDocument, "relationship must contain data").AtPointer(pointer)
		}
		desc, ok := cfg.Relationship(name)
		if !ok {
			return NewError(ErrInvalidRelationship, "%s has no relationship named %q", cfg.Type, name).AtPointer(pointer)
		}
		if _, err := v.linkageIDs(linkage, desc, pointer+"/data"); err != nil {
			return err
		}
	}
	return nil
}

// linkageIDs checks resource linkage against a descriptor and returns the
// referenced ids in document order. A nil slice means an empty to-one.
func (v *RequestValidator) linkageIDs(linkage any, desc RelationshipDescriptor, pointer string) ([]string, error) {
	switch tv := linkage.(type) {
	case nil:
		if desc.Cardinality == CardinalityMany {
			return nil, NewError(ErrInvalidRelationship, "%s is to-many and requires an array", desc.Name).AtPointer(pointer)
		}
		return nil, nil
	case map[string]any:
		if desc.Cardinality == CardinalityMany {
			return nil, NewError(ErrInvalidRelationship, "%s is to-many and requires an array", desc.Name).AtPointer(pointer)
		}
		id, err := v.identifier(tv, desc, pointer)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	case []any:
		if desc.Cardinality == CardinalityOne {
			return nil, NewError(ErrInvalidRelationship, "%s is to-one and cannot take an array", desc.Name).AtPointer(pointer)
		}
		ids := make([]string, 0, len(tv))
		for i, item := range tv {
			itemPointer := fmt.Sprintf("%s/%d", pointer, i)
			m, ok := item.(map[string]any)
			if !ok {
				return nil, NewError(ErrMalformedDocument, "resource identifier must be an object").AtPointer(itemPointer)
			}
			id, err := v.identifier(m, desc, itemPointer)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, NewError(ErrMalformedDocument, "resource linkage must be null, an object or an array").AtPointer(pointer)
	}
}

func (v *RequestValidator) identifier(m map[string]any, desc RelationshipDescriptor, pointer string) (string, error) {
	id, ok := m["id"].(string)
	if !ok || id == "" {
		return "", NewError(ErrMalformedDocument, "resource identifier must have a string id").AtPointer(pointer + "/id")
	}
	typ, ok := m["type"].(string)
	if !ok || typ == "" {
		return "", NewError(ErrMalformedDocument, "resource identifier must have a string type").AtPointer(pointer + "/type")
	}
	if !v.registry.Has(typ) {
		return "", NewError(ErrUnknownResourceType, "resource type %q is not registered", typ).AtPointer(pointer + "/type")
	}
	if typ != desc.TargetType {
		return "", NewError(ErrInvalidRelationship, "%s links %s, not %s", desc.Name, desc.TargetType, typ).AtPointer(pointer + "/type")
	}
	return id, nil
}

// ValidateLinkage validates the body of a relationship endpoint request and
// returns the referenced ids in document order.
func (v *RequestValidator) ValidateLinkage(body any, desc RelationshipDescriptor) ([]string, error) {
	doc, ok := body.(map[string]any)
	if !ok {
		return nil, NewError(ErrMalformedDocument, "document must be a JSON object")
	}
	linkage, present := doc["data"]
	if !present {
		return nil, NewError(ErrMalformedDocument, "document must contain data").AtPointer("/data")
	}
	return v.linkageIDs(linkage, desc, "/data")
}

func structuralRules(method string) map[string]Rule {
	rules := map[string]Rule{
		"data":            {Path: "data", Expr: "required", Required: true},
		"data.type":       {Path: "data.type", Expr: "required,string", Required: true},
		"data.attributes": {Path: "data.attributes", Expr: "required", Required: true},
	}
	if method == http.MethodPatch {
		rules["data.id"] = Rule{Path: "data.id", Expr: "required,string", Required: true}
	}
	return rules
}

// MergeTypeRules combines the structural rules with the type's rules for the
// operation. On create every type rule is required; on update a type rule
// only applies when its field is present.
func (v *RequestValidator) MergeTypeRules(body any, method string) ([]Rule, error) {
	data, err := primaryData(body)
	if err != nil {
		return nil, err
	}
	typ, _ := data["type"].(string)
	cfg, err := v.registry.Config(typ)
	if err != nil {
		return nil, err
	}

	var typeRules RuleSet
	required := false
	switch method {
	case http.MethodPost:
		typeRules, required = cfg.Rules.Create, true
	case http.MethodPatch:
		typeRules = cfg.Rules.Update
	default:
		return nil, NewError(ErrMalformedDocument, "method %s does not accept a resource document", method)
	}

	merged := structuralRules(method)
	for path, expr := range typeRules {
		r := merged[path]
		r.Path = path
		r.Expr = joinExpr(r.Expr, expr)
		r.Required = r.Required || required
		merged[path] = r
	}

	out := make([]Rule, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func joinExpr(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "," + b
}

// Validate runs structure checks and then every merged rule, collecting all
// field failures into a single ValidationError.
func (v *RequestValidator) Validate(body any, method string) error {
	if err := v.ValidateStructure(body, method); err != nil {
		return err
	}
	rules, err := v.MergeTypeRules(body, method)
	if err != nil {
		return err
	}

	var fields []FieldError
	for _, r := range rules {
		val, present := v.lookup(body, r.Path)
		if !present {
			if r.Required {
				fields = append(fields, FieldError{Path: r.Path, Message: "is required"})
			}
			continue
		}
		if r.Expr == "" {
			continue
		}
		if err := v.validate.Var(val, r.Expr); err != nil {
			fields = append(fields, FieldError{Path: r.Path, Message: describe(err)})
		}
	}

	data, _ := primaryData(body)
	cfg, _ := v.registry.Config(data["type"].(string))
	attrs, _ := data["attributes"].(map[string]any)
	for name, val := range attrs {
		path := "data.attributes." + name
		switch {
		case name == AttrCreatedAt || name == AttrUpdatedAt:
			fields = append(fields, FieldError{Path: path, Message: "is read-only"})
		case !cfg.HasAttribute(name):
			fields = append(fields, FieldError{Path: path, Message: "is not a recognised attribute"})
		case !isScalar(val):
			fields = append(fields, FieldError{Path: path, Message: "must be a string, number, boolean or null"})
		}
	}

	if len(fields) > 0 {
		return newValidationError(fields)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "is invalid"
	}
	fe := verrs[0]
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "string":
		return "must be a string"
	case "integer":
		return "must be an integer"
	case "boolean":
		return "must be a boolean"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "len":
		return fmt.Sprintf("must be exactly %s%s", fe.Param(), unit)
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "isbn":
		return "must be a valid ISBN"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed the %q rule", fe.Tag())
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool:
		return true
	}
	return false
}

func isString(fl validator.FieldLevel) bool {
	return fl.Field().Kind() == reflect.String
}

func isInteger(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	case reflect.Float32, reflect.Float64:
		n := f.Float()
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	default:
		return false
	}
}

// Package txfile loads transaction fixtures: a verifying identity, a policy
// and the consumed and produced record sets of one transition, written as
// YAML or JSON.
package txfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/shadowlock/pkg/policy"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

// SupportedVersions is the fixture format range this build reads.
const SupportedVersions = "^1"

const schemaURL = "https://shadowlock.schemas.local/tx.schema.json"

var (
	ErrInvalidDocument    = errors.New("txfile: invalid document")
	ErrUnsupportedVersion = errors.New("txfile: unsupported version")
)

//go:embed schema/tx.schema.json
var schemaJSON string

var (
	compiled          *jsonschema.Schema
	versionConstraint *semver.Constraints
)

func init() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
		panic(fmt.Sprintf("txfile: schema load failed: %v", err))
	}
	compiled = c.MustCompile(schemaURL)
	versionConstraint, _ = semver.NewConstraint(SupportedVersions)
}

// Document is a decoded fixture.
type Document struct {
	Version     string
	OwnIdentity record.Hash
	Policy      []byte
	Consumed    []record.Record
	Produced    []record.Record
}

type rawPolicyFields struct {
	DelegateByType bool   `yaml:"delegate_by_type"`
	ForbidTrade    bool   `yaml:"forbid_trade"`
	SelfDestruct   bool   `yaml:"self_destruct"`
	Reference      string `yaml:"reference"`
	DataHash       string `yaml:"data_hash"`
}

type rawRecord struct {
	Lock        string `yaml:"lock"`
	Type        string `yaml:"type"`
	ContentHash string `yaml:"content_hash"`
	Content     string `yaml:"content"`
}

type rawDocument struct {
	Version      string           `yaml:"version"`
	OwnIdentity  string           `yaml:"own_identity"`
	Policy       string           `yaml:"policy"`
	PolicyFields *rawPolicyFields `yaml:"policy_fields"`
	Consumed     []rawRecord      `yaml:"consumed"`
	Produced     []rawRecord      `yaml:"produced"`
}

// Load reads and parses the fixture at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("txfile: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates data against the fixture schema, checks the format
// version and decodes every hex field.
func Parse(data []byte) (*Document, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	v, err := semver.NewVersion(raw.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, raw.Version, err)
	}
	if !versionConstraint.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedVersion, v, SupportedVersions)
	}

	doc := &Document{Version: raw.Version}
	if doc.OwnIdentity, err = field("own_identity", raw.OwnIdentity); err != nil {
		return nil, err
	}
	if doc.Policy, err = raw.policyBytes(); err != nil {
		return nil, err
	}
	if doc.Consumed, err = records("consumed", raw.Consumed); err != nil {
		return nil, err
	}
	if doc.Produced, err = records("produced", raw.Produced); err != nil {
		return nil, err
	}
	return doc, nil
}

// Accessor serves the document to the verifier. The authority group is
// every consumed record locked by OwnIdentity.
func (d *Document) Accessor() *record.MemoryAccessor {
	return record.NewMemoryAccessor(d.OwnIdentity, d.Policy, d.Consumed, d.Produced)
}

// validate runs the schema over a generic JSON rendering of data, so YAML
// and JSON fixtures are held to the same rules.
func validate(data []byte) error {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

func (r rawDocument) policyBytes() ([]byte, error) {
	if r.PolicyFields == nil {
		b, err := record.DecodeHex(r.Policy)
		if err != nil {
			return nil, fmt.Errorf("txfile: policy: %w", err)
		}
		return b, nil
	}

	f := r.PolicyFields
	d := policy.Descriptor{Flags: policy.Flags{
		DelegateByType: f.DelegateByType,
		ForbidTrade:    f.ForbidTrade,
		SelfDestruct:   f.SelfDestruct,
	}}
	var err error
	if d.Reference, err = field("policy_fields.reference", f.Reference); err != nil {
		return nil, err
	}
	if f.DataHash != "" {
		data, err := field("policy_fields.data_hash", f.DataHash)
		if err != nil {
			return nil, err
		}
		d.DataHash = &data
		d.Flags.RestrictDelegateData = true
	}
	return policy.Encode(d)
}

func records(name string, raw []rawRecord) ([]record.Record, error) {
	out := make([]record.Record, 0, len(raw))
	for i, rr := range raw {
		prefix := fmt.Sprintf("%s[%d]", name, i)
		var (
			rec record.Record
			err error
		)
		if rec.Lock, err = field(prefix+".lock", rr.Lock); err != nil {
			return nil, err
		}
		if rr.Type != "" {
			typ, err := field(prefix+".type", rr.Type)
			if err != nil {
				return nil, err
			}
			rec.Type = &typ
		}
		switch {
		case rr.ContentHash != "":
			if rec.Content, err = field(prefix+".content_hash", rr.ContentHash); err != nil {
				return nil, err
			}
		case rr.Content != "":
			content, err := record.DecodeHex(rr.Content)
			if err != nil {
				return nil, fmt.Errorf("txfile: %s.content: %w", prefix, err)
			}
			rec.Content = record.HashContent(content)
		}
		out = append(out, rec)
	}
	return out, nil
}

func field(name, value string) (record.Hash, error) {
	h, err := record.ParseHash(value)
	if err != nil {
		return record.Hash{}, fmt.Errorf("txfile: %s: %w", name, err)
	}
	return h, nil
}

// Package keys implements the signing Key Registry (spec §4.5): it parses,
// validates, and deduplicates configured KMS key identifiers into a default
// key, per-region overrides, and retired secondaries, then exposes pure
// lookup functions with no I/O.
package keys

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws/arn"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
)

// KeyRef is an opaque reference to a KMS signing key, in ARN form
// (e.g. "arn:aws:kms:us-east-1:111122223333:key/1234abcd-..."), resolvable
// by the remote key service and parseable to extract a region tag.
type KeyRef string

// Region extracts the AWS region embedded in the key ARN.
func (k KeyRef) Region() (string, error) {
	parsed, err := arn.Parse(string(k))
	if err != nil {
		return "", fmt.Errorf("invalid key reference %q: %w", k, err)
	}
	return parsed.Region, nil
}

// keyID extracts the resource part of the ARN (everything after the account
// field, e.g. "key/1234abcd-..."), used as the stable kid embedded in JWT
// headers.
func (k KeyRef) keyID() (string, error) {
	parsed, err := arn.Parse(string(k))
	if err != nil {
		return "", fmt.Errorf("invalid key reference %q: %w", k, err)
	}
	return parsed.Resource, nil
}

// Config is the input configuration for a Registry (spec §4.5).
type Config struct {
	DefaultKey    KeyRef
	RegionalKeys  []KeyRef
	SecondaryKeys []KeyRef
}

// Registry is the validated, immutable view of Config. It is read-only
// after construction; no synchronization is needed to use it from
// concurrent request handlers (spec §5).
type Registry struct {
	defaultKey       KeyRef
	regionalByRegion map[string]KeyRef
	regional         []KeyRef
	secondary        []KeyRef
}

// NewRegistry validates cfg in one exhaustive pass, collecting every
// violation rather than failing on the first, and returns an
// *apierrors.AggregateError if any are found (spec §4.5, §7, property P5).
func NewRegistry(cfg Config) (*Registry, error) {
	var agg apierrors.AggregateError

	if cfg.DefaultKey == "" {
		agg.Add(fmt.Errorf("default key must be set"))
	} else if _, err := cfg.DefaultKey.Region(); err != nil {
		agg.Add(err)
	}

	seen := map[KeyRef]string{} // key -> which list it first appeared in
	regionalByRegion := make(map[string]KeyRef, len(cfg.RegionalKeys))

	if cfg.DefaultKey != "" {
		seen[cfg.DefaultKey] = "default"
	}

	for _, k := range cfg.RegionalKeys {
		if _, err := k.Region(); err != nil {
			agg.Add(err)
			continue
		}
		if owner, dup := seen[k]; dup {
			if owner == "default" {
				agg.Add(fmt.Errorf("default key specified as regional: %s", k))
			} else {
				agg.Add(fmt.Errorf("duplicate regional key: %s", k))
			}
			continue
		}
		seen[k] = "regional"

		region, _ := k.Region()
		if existing, dup := regionalByRegion[region]; dup {
			agg.Add(fmt.Errorf("region %q claimed by both %s and %s", region, existing, k))
			continue
		}
		regionalByRegion[region] = k
	}

	for _, k := range cfg.SecondaryKeys {
		if _, err := k.Region(); err != nil {
			agg.Add(err)
			continue
		}
		if owner, dup := seen[k]; dup {
			switch owner {
			case "default":
				agg.Add(fmt.Errorf("default key specified as secondary: %s", k))
			case "regional":
				agg.Add(fmt.Errorf("regional key also specified as secondary: %s", k))
			default:
				agg.Add(fmt.Errorf("duplicate secondary key: %s", k))
			}
			continue
		}
		seen[k] = "secondary"
	}

	if err := agg.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Registry{
		defaultKey:       cfg.DefaultKey,
		regionalByRegion: regionalByRegion,
		regional:         cfg.RegionalKeys,
		secondary:        cfg.SecondaryKeys,
	}, nil
}

// PickSigningKey returns the regional key for region if one is registered,
// else the default key. Pure function, no I/O (spec §4.5).
func (r *Registry) PickSigningKey(region string) KeyRef {
	if k, ok := r.regionalByRegion[region]; ok {
		return k
	}
	return r.defaultKey
}

// AllKeys returns the default key, every regional key, and every secondary
// key -- the full exported set published in JWKS.
func (r *Registry) AllKeys() []KeyRef {
	all := make([]KeyRef, 0, 1+len(r.regional)+len(r.secondary))
	all = append(all, r.defaultKey)
	all = append(all, r.regional...)
	all = append(all, r.secondary...)
	return all
}

// KidFor returns the stable per-key identifier embedded in the JWT header
// for keyRef.
func (r *Registry) KidFor(keyRef KeyRef) (string, error) {
	return keyRef.keyID()
}

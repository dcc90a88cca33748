package backup

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// StorageKey identifies a blob in the backup. It is the lowercase hex encoding of the SHA-1 digest
// of the file's identity string (see Identity).
type StorageKey string

const storageKeyLen = sha1.Size * 2

func (k StorageKey) String() string {
	return string(k)
}

// Shard is the name of the fan-out directory the blob is stored in.
func (k StorageKey) Shard() string {
	if len(k) < 2 {
		return ""
	}
	return string(k[:2])
}

// Validate checks the key is safe to use as a path component and long enough to be sharded. It
// deliberately does not require a full length SHA-1 digest so keys from unusual backups can still
// be resolved.
func (k StorageKey) Validate() error {
	if len(k) < 2 {
		return fmt.Errorf("%w: %q is too short", ErrInvalidStorageKey, string(k))
	}
	if strings.ContainsAny(string(k), `/\`) || k == ".." {
		return fmt.Errorf("%w: %q contains path separators", ErrInvalidStorageKey, string(k))
	}
	return nil
}

// WellFormed reports if the key looks like a full SHA-1 digest. Keys of unusual backups may not.
func (k StorageKey) WellFormed() bool {
	if len(k) != storageKeyLen {
		return false
	}
	_, err := hex.DecodeString(string(k))
	return err == nil
}

const appDomainPrefix = "AppDomain-"

// domainRe matches identifiers that already name a backup domain, such as HomeDomain,
// AppDomain-com.apple.Pages or AppDomainGroup-group.com.apple.notes. Bundle identifiers are dotted
// so they never match.
var domainRe = regexp.MustCompile(`^[A-Za-z]*Domain[A-Za-z]*(-|$)`)

// AppDomain canonicalizes an application identifier into a backup domain. A bare bundle identifier
// like "com.apple.Pages" becomes "AppDomain-com.apple.Pages". Identifiers that already name a
// domain (HomeDomain, AppDomainGroup-..., AppDomain-...) are returned unchanged.
func AppDomain(appID string) string {
	if appID == "" || domainRe.MatchString(appID) {
		return appID
	}
	return appDomainPrefix + appID
}

// AppID is the inverse of AppDomain for application domains. Other domains are returned as is.
func AppID(domain string) string {
	return strings.TrimPrefix(domain, appDomainPrefix)
}

// Identity is the canonical string a storage key is derived from. No normalization is applied to
// either component, the comparison is case-sensitive.
func Identity(domain string, relativePath string) string {
	return domain + "-" + relativePath
}

// ComputeStorageKey derives the storage key for a file from its domain and relative path.
func ComputeStorageKey(domain string, relativePath string) StorageKey {
	sum := sha1.Sum([]byte(Identity(domain, relativePath)))
	return StorageKey(hex.EncodeToString(sum[:]))
}

// SchemaVersion identifies the on-disk manifest format of a device backup.
type SchemaVersion int

const (
	SchemaUnknown SchemaVersion = iota
	// Manifest.mbdb, a flat binary record file used up to iOS 9. Records do not store the storage
	// key.
	SchemaMBDB
	// Manifest.db, an SQLite database used since iOS 10. Records store the storage key (fileID).
	SchemaSQLite
)

func (s SchemaVersion) String() string {
	switch s {
	case SchemaMBDB:
		return "mbdb"
	case SchemaSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// KeyDerivation returns the strategy used to obtain storage keys for records of this schema.
func (s SchemaVersion) KeyDerivation() KeyDerivation {
	switch s {
	case SchemaSQLite:
		return FromManifestRecord{}
	default:
		return RecomputeFromIdentity{}
	}
}

// rawRecord is a manifest record before its storage key was settled.
type rawRecord struct {
	Domain       string
	RelativePath string
	StoredKey    StorageKey
}

// KeyDerivation determines the storage key of a manifest record.
type KeyDerivation interface {
	DeriveKey(rec rawRecord) (StorageKey, error)
	String() string
}

// FromManifestRecord trusts the key stored in the manifest record.
type FromManifestRecord struct{}

func (FromManifestRecord) DeriveKey(rec rawRecord) (StorageKey, error) {
	if rec.StoredKey == "" {
		return "", fmt.Errorf("record for %q has no storage key", Identity(rec.Domain, rec.RelativePath))
	}
	if err := rec.StoredKey.Validate(); err != nil {
		return "", err
	}
	return StorageKey(strings.ToLower(string(rec.StoredKey))), nil
}

func (FromManifestRecord) String() string {
	return "from-manifest-record"
}

// RecomputeFromIdentity computes the key by hashing the record's identity.
type RecomputeFromIdentity struct{}

func (RecomputeFromIdentity) DeriveKey(rec rawRecord) (StorageKey, error) {
	return ComputeStorageKey(rec.Domain, rec.RelativePath), nil
}

func (RecomputeFromIdentity) String() string {
	return "recompute-from-identity"
}

// KeyPolicy controls whether keys declared by the manifest are re-verified by recomputing them.
type KeyPolicy int

const (
	// KeyPolicyTrustManifest uses the keys the manifest declares as is.
	KeyPolicyTrustManifest KeyPolicy = iota
	// KeyPolicyVerify recomputes every declared key while loading and again on lookup. A mismatch
	// fails with ErrKeyMismatch.
	KeyPolicyVerify
)

func (p KeyPolicy) String() string {
	switch p {
	case KeyPolicyVerify:
		return "verify"
	default:
		return "trust"
	}
}

func verifyKey(rec rawRecord, key StorageKey) error {
	if want := ComputeStorageKey(rec.Domain, rec.RelativePath); want != key {
		return fmt.Errorf("%w: %q has key %s, expected %s", ErrKeyMismatch, Identity(rec.Domain, rec.RelativePath), key, want)
	}
	return nil
}

package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/velorent/recovery/internal"
)

const (
	challengeRecordVersionV1 = 1
)

// ChallengeKind is the explicit real/fake variant tag. Fake challenges are
// created for unknown or excluded accounts and can never be satisfied; they
// exist to burn the same attempt budget as real ones.
type ChallengeKind uint8

const (
	ChallengeFake ChallengeKind = 0
	ChallengeReal ChallengeKind = 1
)

var (
	ErrChallengeObsolete         = errors.New("challenge record obsolete")
	ErrChallengeCodeMismatch     = errors.New("challenge code mismatch")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// consumeChallengeLua atomically performs the verification read-modify-write
// on a challenge record.
//
// KEYS[1] = record key
// ARGV[1] = provided code hash (32 bytes)
// ARGV[2] = submitted email (already normalized)
// ARGV[3] = "1" when a matching non-excluded account exists, "0" otherwise
// ARGV[4] = max attempts (int string)
// ARGV[5] = current unix timestamp (int string)
//
// Returns record bytes on success, or an error string:
// "not_found", "expired", "email_mismatch", "orphaned",
// "attempts_exceeded", "code_mismatch".
//
// Binary layout: version(1) kind(1) attempts(2 BE) createdAt(8 BE)
// expiresAt(8 BE) emailLen(2 BE) email codeHash(32).
var consumeChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local submittedEmail = ARGV[2]
local accountExists = tonumber(ARGV[3])
local maxAttempts = tonumber(ARGV[4])
local nowUnix = tonumber(ARGV[5])

local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local kind = string.byte(data, 2)
local attempts = string.byte(data, 3) * 256 + string.byte(data, 4)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 13, 20)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local emailLen = string.byte(data, 21) * 256 + string.byte(data, 22)
local email = string.sub(data, 23, 22 + emailLen)
if email ~= submittedEmail then
  redis.call('DEL', KEYS[1])
  return {err='email_mismatch'}
end

if kind == 1 and accountExists == 0 then
  redis.call('DEL', KEYS[1])
  return {err='orphaned'}
end

if attempts >= maxAttempts then
  return {err='attempts_exceeded'}
end

local hashOffset = 23 + emailLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if kind ~= 1 or accountExists ~= 1 or storedHash ~= providedHash then
  attempts = attempts + 1
  local newA0 = math.floor(attempts / 256)
  local newA1 = attempts % 256
  local newData = string.sub(data, 1, 2) .. string.char(newA0, newA1) .. string.sub(data, 5)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='expired'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='code_mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// ChallengeRecord is the stored form of one outstanding recovery challenge.
// CodeHash is all zeroes for fake records.
type ChallengeRecord struct {
	Kind      ChallengeKind
	Email     string
	Attempts  uint16
	CreatedAt int64
	ExpiresAt int64
	CodeHash  [32]byte
}

// ChallengeStore keeps at most one live challenge per email address, keyed
// by a digest of the normalized address.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "vrc"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(email string) string {
	return s.prefix + ":" + internal.KeyDigest(email)
}

// Save writes a fresh challenge, replacing any live one for the same email
// and resetting its attempt count.
func (s *ChallengeStore) Save(ctx context.Context, email string, record *ChallengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	return nil
}

// Get returns the live challenge for email, treating records past their
// absolute expiry as absent.
func (s *ChallengeStore) Get(ctx context.Context, email string, nowUnix int64) (*ChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeObsolete
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if nowUnix > record.ExpiresAt {
		return nil, ErrChallengeObsolete
	}

	return record, nil
}

// Delete invalidates the challenge for email immediately.
func (s *ChallengeStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Consume runs the whole verification sequence atomically: obsolescence
// checks (absent, expired, email mismatch, real record with no account),
// the lockout check, and either an attempt increment that preserves the
// remaining TTL or a delete on success. accountExists is resolved by the
// caller; passing it in keeps the decision inside one script execution.
func (s *ChallengeStore) Consume(
	ctx context.Context,
	email string,
	providedHash [32]byte,
	accountExists bool,
	maxAttempts int,
	nowUnix int64,
) (*ChallengeRecord, error) {
	existsArg := "0"
	if accountExists {
		existsArg = "1"
	}

	result, err := consumeChallengeLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		string(providedHash[:]),
		email,
		existsArg,
		maxAttempts,
		nowUnix,
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found", "expired", "email_mismatch", "orphaned":
			return nil, ErrChallengeObsolete
		case "attempts_exceeded":
			return nil, ErrChallengeAttemptsExceeded
		case "code_mismatch":
			return nil, ErrChallengeCodeMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrChallengeRedisUnavailable)
	}

	record, decErr := decodeChallengeRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, decErr)
	}

	// Final constant-time comparison in Go as defense-in-depth
	// (Lua already checked, but Lua string comparison is not constant-time)
	if record.Kind != ChallengeReal || subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
		return nil, ErrChallengeCodeMismatch
	}

	return record, nil
}

func encodeChallengeRecord(record *ChallengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)
	buf.WriteByte(byte(record.Kind))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Email) > 65535 {
		return nil, errors.New("challenge record email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*ChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &ChallengeRecord{
		Kind: ChallengeKind(kind),
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}

	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}

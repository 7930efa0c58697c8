package ledger

// Field size bounds, enforced at the operation boundary before any
// derivation or mutation. Exceeding any of them rejects with
// STRING_TOO_LONG; nothing is silently truncated.
const (
	MaxContentIDLen     = 64
	MaxEncryptedHashLen = 64
	MaxFileNameLen      = 100
	MaxKeyMaterialLen   = 256
)

// checkLen rejects values longer than max bytes.
func checkLen(field, value string, max int) error {
	if len(value) > max {
		return opErr(ErrCodeStringTooLong, "",
			"%s is %d bytes, max %d", field, len(value), max)
	}
	return nil
}

package errors

// Kind classifies a storage or infrastructure error independently of which
// wire shape the calling service responds with.
type Kind string

const (
	KindNotFound    Kind = "NOT_FOUND"   // no matching row
	KindDuplicate   Kind = "DUPLICATE"   // unique constraint violated
	KindUnavailable Kind = "UNAVAILABLE" // database or peer service unreachable
	KindInternal    Kind = "INTERNAL"    // anything else
)

// PostgreSQL SQLSTATE codes inspected by ParseError.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

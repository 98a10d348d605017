package domain

const (
	// Canonical calendar date layout used for natural keys and exports
	DATE_LAYOUT = "2006-01-02"

	// Natural key separator for composite keys
	NK_SEPARATOR = "|"

	// Separator between a business natural key and a version effective date
	VERSION_NK_SEPARATOR = "@"
)

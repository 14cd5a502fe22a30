package store

func DialectName(dsn string) string {
	d, _ := dialectorFor(dsn)
	return d.Name()
}

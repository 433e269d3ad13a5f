package model

// Movie is a row of the `movies` table.  Movies are static reference
// data created by administrators; customers only read them.
//
// Fields:
//  ID       – primary key identifier.
//  Title    – movie title.
//  Year     – release year.
//  Director – director name.
//  Poster   – optional URL of a poster image.
type Movie struct {
	ID       uint64  // movies.id
	Title    string  // movies.title
	Year     int32   // movies.year
	Director string  // movies.director
	Poster   *string // movies.poster (nullable)
}

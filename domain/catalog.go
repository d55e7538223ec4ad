package domain

// DefaultCatalog is the fixed list of categories a session draws its rounds from.
var DefaultCatalog = []Category{
	"History", "Geography", "Sports", "Science", "Art",
	"Entertainment", "Technology", "Food", "Music", "Cinema",
	"Literature", "Nature", "Medicine", "Politics", "Economy",
}

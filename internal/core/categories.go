package core

// Category is one entry of the fixed category table.
type Category struct {
	Value string
	Label string
}

var categoryTable = map[Kind][]Category{
	Income: {
		{Value: "Salary", Label: "💰 Salary"},
		{Value: "Bonus", Label: "🎁 Bonus"},
		{Value: "Business", Label: "🅱️ Business"},
		{Value: "Freelance", Label: "💼 Freelance"},
		{Value: "Investment", Label: "📈 Investment"},
		{Value: "Other", Label: "📌 Other"},
	},
	Expense: {
		{Value: "Food", Label: "🍔 Food"},
		{Value: "Shopping", Label: "🛍️ Shopping"},
		{Value: "Transportation", Label: "🚗 Transportation"},
		{Value: "Bills", Label: "💳 Bills"},
		{Value: "Entertainment", Label: "🎬 Entertainment"},
		{Value: "Health", Label: "🏥 Health"},
		{Value: "Other", Label: "📌 Other"},
	},
}

// Categories returns a copy of the allowed categories for kind.
func Categories(kind Kind) []Category {
	src := categoryTable[kind]
	out := make([]Category, len(src))
	copy(out, src)
	return out
}

// IsCategory reports whether value belongs to the table of kind.
func IsCategory(kind Kind, value string) bool {
	for _, c := range categoryTable[kind] {
		if c.Value == value {
			return true
		}
	}
	return false
}

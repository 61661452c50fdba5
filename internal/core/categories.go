package core

// Display colors shared by the summary computation and its consumers.
const (
	// AlertColor replaces a category's own color when its monthly spend
	// exceeds the budget limit.
	AlertColor = "#D32F2F"
	// NeutralColor is used for the synthetic fallback category.
	NeutralColor = "#ccc"
	// OtherCategoryName labels spend whose category was deleted.
	OtherCategoryName = "Other"
)

// DefaultExpenseCategories is the seeded expense set. Ids stay below
// IncomeCategoryThreshold.
var DefaultExpenseCategories = []Category{
	{ID: "1", Name: "Food & Market", Icon: "ShoppingCart", Color: "#FF6B6B"},
	{ID: "2", Name: "Rent & Home", Icon: "Home", Color: "#4ECDC4"},
	{ID: "3", Name: "Water / Power / Gas", Icon: "Zap", Color: "#FFE66D"},
	{ID: "4", Name: "Transport / Fuel", Icon: "Car", Color: "#1A535C"},
	{ID: "5", Name: "Kids & School", Icon: "GraduationCap", Color: "#FF9F1C"},
	{ID: "6", Name: "Health & Care", Icon: "Heart", Color: "#FF006E"},
	{ID: "7", Name: "Celebrations & Gifts", Icon: "Gift", Color: "#8338EC"},
	{ID: "8", Name: "Provisions (Stock)", Icon: "Database", Color: "#FB5607"},
	{ID: "9", Name: "Coffee & Restaurant", Icon: "Coffee", Color: "#3A86FF"},
	{ID: "10", Name: "Family & Parents", Icon: "Users", Color: "#9D4EDD"},
	{ID: "11", Name: "Clothing", Icon: "ShoppingBag", Color: "#FF00CC"},
}

// DefaultIncomeCategories is the seeded income set. Ids start at
// IncomeCategoryThreshold.
var DefaultIncomeCategories = []Category{
	{ID: "100", Name: "Salary", Icon: "Banknote", Color: "#27AE60"},
	{ID: "101", Name: "Bonus", Icon: "TrendingUp", Color: "#2ECC71"},
	{ID: "102", Name: "Sales / Trade", Icon: "ShoppingBag", Color: "#16A085"},
	{ID: "103", Name: "Gift Received", Icon: "Gift", Color: "#3498DB"},
	{ID: "104", Name: "Other Income", Icon: "PlusCircle", Color: "#95A5A6"},
}

// DefaultCategories returns a fresh copy of the full seed set, expenses first.
// Callers own the returned slice.
func DefaultCategories() []Category {
	out := make([]Category, 0, len(DefaultExpenseCategories)+len(DefaultIncomeCategories))
	out = append(out, DefaultExpenseCategories...)
	out = append(out, DefaultIncomeCategories...)
	return out
}

package vocabulary

// Definitions returns the vocabularies the shipped churn model was fitted
// against. Changing any code here invalidates the model.
func Definitions() []Definition {
	return []Definition{
		{Attribute: Gender, Entries: []Entry{
			{"M", 0}, {"F", 1},
		}},
		{Attribute: Education, Entries: []Entry{
			{"Graduate", 0},
			{"High School", 1},
			{"Unknown", 2},
			{"Uneducated", 3},
			{"College", 4},
			{"Post-Graduate", 5},
			{"Doctorate", 6},
		}},
		{Attribute: Marital, Entries: []Entry{
			{"Married", 0}, {"Single", 1}, {"Unknown", 2}, {"Divorced", 3},
		}},
		{Attribute: Income, Entries: []Entry{
			{"$60K - $80K", 0},
			{"Less than $40K", 1},
			{"$80K - $120K", 2},
			{"$120K +", 3},
			{"$40K - $60K", 4},
			{"Unknown", 5},
		}},
		{Attribute: Card, Entries: []Entry{
			{"Blue", 0}, {"Gold", 1}, {"Silver", 2}, {"Platinum", 3},
		}},
	}
}

// Default builds the registry from Definitions.
func Default() *Registry {
	r, err := New(Definitions()...)
	if err != nil {
		// Definitions is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

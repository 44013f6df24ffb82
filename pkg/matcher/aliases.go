package matcher

// DefaultAliases lists label wordings commonly used for each profile key.
// The key itself, with underscores read as spaces, is always an alias too.
var DefaultAliases = map[string][]string{
	"full_name":       {"full name", "complete name", "your name", "name", "applicant name", "student name"},
	"first_name":      {"first name", "given name", "fname", "forename"},
	"middle_name":     {"middle name", "middle initial"},
	"last_name":       {"last name", "surname", "family name", "lname"},
	"email":           {"email", "email address", "e mail", "e mail address", "email id", "mail id"},
	"phone":           {"phone", "phone number", "mobile number", "mobile", "contact number", "telephone", "cell phone"},
	"address":         {"address", "street address", "residential address", "address line 1"},
	"city":            {"city", "town", "city town"},
	"state":           {"state", "province", "region", "state province"},
	"country":         {"country", "nation", "country of residence"},
	"zip_code":        {"zip code", "zip", "postal code", "pin code", "pincode", "postcode"},
	"date_of_birth":   {"date of birth", "birth date", "dob", "birthday"},
	"gender":          {"gender", "sex"},
	"nationality":     {"nationality", "citizenship"},
	"school":          {"school", "university", "college", "institution", "school name", "college name"},
	"degree":          {"degree", "qualification", "education level", "highest qualification"},
	"major":           {"major", "field of study", "specialization", "branch"},
	"graduation_year": {"graduation year", "year of graduation", "passing year", "year of passing"},
	"gpa":             {"gpa", "cgpa", "grade point average", "percentage"},
	"job_title":       {"job title", "position", "current position", "designation", "occupation", "role"},
	"company":         {"company", "organization", "employer", "current company", "company name"},
	"experience":      {"experience", "years of experience", "total experience", "work experience"},
	"linkedin":        {"linkedin", "linkedin profile", "linkedin url"},
	"github":          {"github", "github profile", "github url"},
	"website":         {"website", "portfolio", "personal website", "portfolio url"},
	"skills":          {"skills", "technical skills", "key skills"},
}

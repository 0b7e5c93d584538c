package wizard

import "fmt"

// Occasion is the category of page being generated.
type Occasion int

const (
	OccasionNone Occasion = iota
	Birthday
	Wedding
	Engagement
	Anniversary
	BabyShower
	HouseWarming
	Corporate
	ProductLaunch
	Portfolio
	Business
	Festival
	Invitation

	occasionCount
)

type occasionSpec struct {
	value  string
	label  string
	fields []Field
}

// occasionTable is indexed by Occasion. The array length check below stops the
// build when an occasion is added without a table entry.
var occasionTable = [...]occasionSpec{
	OccasionNone: {},
	Birthday: {"birthday", "Birthday", []Field{
		{ID: "birthday_person", Label: "Birthday Person Name", Kind: KindText, Required: true},
		{ID: "age", Label: "Age turning", Kind: KindText, Placeholder: "e.g., 5th, 21st"},
		{ID: "relationship", Label: "Relationship", Kind: KindText, Placeholder: "e.g., Son, Daughter, Friend"},
		{ID: "special_message", Label: "Special Message", Kind: KindTextArea},
		{ID: "event_type", Label: "Event Type", Kind: KindSelect, Options: []string{"Party", "Surprise", "Simple Wish"}},
		{ID: "dress_code", Label: "Dress Code", Kind: KindText},
	}},
	Wedding: {"wedding", "Wedding", []Field{
		{ID: "bride_name", Label: "Bride Name", Kind: KindText, Required: true},
		{ID: "groom_name", Label: "Groom Name", Kind: KindText, Required: true},
		{ID: "wedding_type", Label: "Wedding Type", Kind: KindSelect, Options: []string{"Traditional", "Reception", "Destination"}},
		{ID: "wedding_date", Label: "Wedding Date", Kind: KindDate, Required: true},
		{ID: "wedding_time", Label: "Wedding Time", Kind: KindTime},
		{ID: "venue_address", Label: "Venue Address", Kind: KindTextArea, Required: true},
		{ID: "family_names", Label: "Family Names", Kind: KindTextArea, Placeholder: "Parents/Grandparents names..."},
		{ID: "hashtags", Label: "Hashtags", Kind: KindText, Placeholder: "#RahulWedsPriya"},
		{ID: "dress_code", Label: "Dress Code", Kind: KindText},
		{ID: "map_link", Label: "Map Link", Kind: KindText},
	}},
	Engagement: {"engagement", "Engagement", []Field{
		{ID: "bride_name", Label: "Bride Name", Kind: KindText, Required: true},
		{ID: "groom_name", Label: "Groom Name", Kind: KindText, Required: true},
		{ID: "engagement_date_time", Label: "Date & Time", Kind: KindText, Placeholder: "Example: 10th Aug at 7 PM"},
		{ID: "venue", Label: "Venue", Kind: KindText, Required: true},
		{ID: "hosted_by", Label: "Hosted By", Kind: KindText, Placeholder: "Families of..."},
		{ID: "love_story", Label: "Short Love Story", Kind: KindTextArea},
	}},
	Anniversary: {"anniversary", "Anniversary", []Field{
		{ID: "couple_names", Label: "Couple Names", Kind: KindText, Required: true},
		{ID: "anniversary_num", Label: "Anniversary Number", Kind: KindText, Placeholder: "e.g., 1st, 25th Silver Jubilee"},
		{ID: "marriage_year", Label: "Marriage Year", Kind: KindText},
		{ID: "celebration_type", Label: "Celebration Type", Kind: KindSelect, Options: []string{"Private", "Party"}},
		{ID: "message_from", Label: "Message From", Kind: KindText, Placeholder: "Kids / Family / Friends"},
	}},
	BabyShower: {"baby_shower", "Baby Shower / Naming Ceremony", []Field{
		{ID: "parent_names", Label: "Parent Names", Kind: KindText, Required: true},
		{ID: "baby_name", Label: "Baby Name", Kind: KindText, Placeholder: "If revealed"},
		{ID: "event_type", Label: "Event Type", Kind: KindSelect, Options: []string{"Baby Shower", "Naming Ceremony"}},
		{ID: "blessing_message", Label: "Blessing Message", Kind: KindTextArea},
		{ID: "venue", Label: "Venue", Kind: KindText},
		{ID: "cultural_theme", Label: "Cultural Theme", Kind: KindText},
	}},
	HouseWarming: {"house_warming", "House Warming", []Field{
		{ID: "owner_names", Label: "Owner Name(s)", Kind: KindText, Required: true},
		{ID: "house_name", Label: "House Name", Kind: KindText},
		{ID: "event_date_time", Label: "Event Date & Time", Kind: KindText},
		{ID: "address", Label: "Full Address", Kind: KindTextArea, Required: true},
		{ID: "puja_details", Label: "Puja / Ceremony Details", Kind: KindTextArea},
		{ID: "hosted_by", Label: "Hosted By", Kind: KindText},
	}},
	Corporate: {"corporate", "Corporate Event", []Field{
		{ID: "company_name", Label: "Company Name", Kind: KindText, Required: true},
		{ID: "event_name", Label: "Event Name", Kind: KindText, Required: true},
		{ID: "purpose", Label: "Event Purpose", Kind: KindText},
		{ID: "speakers", Label: "Speaker Names", Kind: KindText},
		{ID: "agenda", Label: "Agenda", Kind: KindTextArea},
		{ID: "registration_link", Label: "Registration Link", Kind: KindText},
	}},
	ProductLaunch: {"product_launch", "Product Launch", []Field{
		{ID: "product_name", Label: "Product Name", Kind: KindText, Required: true},
		{ID: "tagline", Label: "Product Tagline", Kind: KindText},
		{ID: "launch_date", Label: "Launch Date & Time", Kind: KindText},
		{ID: "features", Label: "Key Features", Kind: KindTextArea, Placeholder: "List key features..."},
		{ID: "cta_text", Label: "CTA Button Text", Kind: KindText, Placeholder: "Buy Now / Learn More"},
		{ID: "website_link", Label: "Website / Store Link", Kind: KindText},
	}},
	Portfolio: {"portfolio", "Portfolio / Personal Website", []Field{
		{ID: "full_name", Label: "Full Name", Kind: KindText, Required: true},
		{ID: "profession", Label: "Profession", Kind: KindText, Required: true},
		{ID: "about", Label: "About Me", Kind: KindTextArea},
		{ID: "skills", Label: "Skills", Kind: KindText, Placeholder: "Comma separated (e.g. React, Python)"},
		{ID: "projects", Label: "Projects", Kind: KindTextArea, Placeholder: "List project titles..."},
		{ID: "contact_email", Label: "Contact Email", Kind: KindText},
		{ID: "social_links", Label: "Social Links", Kind: KindTextArea, Placeholder: "LinkedIn, GitHub, etc."},
	}},
	Business: {"business", "Business / Service Website", []Field{
		{ID: "business_name", Label: "Business Name", Kind: KindText, Required: true},
		{ID: "business_type", Label: "Business Type", Kind: KindText, Placeholder: "e.g. Restaurant, Salon"},
		{ID: "services", Label: "Services Offered", Kind: KindTextArea, Placeholder: "List services..."},
		{ID: "service_area", Label: "Service Area / Location", Kind: KindText},
		{ID: "description", Label: "Business Description", Kind: KindTextArea},
		{ID: "hours", Label: "Working Hours", Kind: KindText},
		{ID: "contact_details", Label: "Contact Details", Kind: KindText},
		{ID: "whatsapp", Label: "WhatsApp Button", Kind: KindSelect, Options: []string{"Yes", "No"}},
	}},
	Festival: {"festival", "Festival Greeting", []Field{
		{ID: "festival_name", Label: "Festival Name", Kind: KindText, Required: true},
		{ID: "greeting_message", Label: "Greeting Message", Kind: KindTextArea},
		{ID: "from_name", Label: "From Name / Family Name", Kind: KindText},
		{ID: "cultural_style", Label: "Cultural Style", Kind: KindSelect, Options: []string{"Traditional", "Modern"}},
		{ID: "background", Label: "Background Preference", Kind: KindText},
	}},
	Invitation: {"invitation", "Invitation (Generic / Custom)", []Field{
		{ID: "event_name", Label: "Event Name", Kind: KindText, Required: true},
		{ID: "host_name", Label: "Host Name", Kind: KindText},
		{ID: "description", Label: "Event Description", Kind: KindTextArea},
		{ID: "date_time", Label: "Date & Time", Kind: KindText},
		{ID: "venue", Label: "Venue", Kind: KindText},
		{ID: "rsvp", Label: "RSVP Details", Kind: KindText},
		{ID: "notes", Label: "Additional Notes", Kind: KindTextArea},
	}},
}

var _ = [1]struct{}{}[len(occasionTable)-int(occasionCount)]

// Occasions lists every selectable occasion in display order.
func Occasions() []Occasion {
	out := make([]Occasion, 0, int(occasionCount)-1)
	for o := Birthday; o < occasionCount; o++ {
		out = append(out, o)
	}
	return out
}

// ParseOccasion maps a wire value such as "baby_shower" to an Occasion.
func ParseOccasion(value string) (Occasion, error) {
	for o := Birthday; o < occasionCount; o++ {
		if occasionTable[o].value == value {
			return o, nil
		}
	}
	return OccasionNone, fmt.Errorf("%w: %q", ErrUnknownOccasion, value)
}

// Valid reports whether o is a selectable occasion.
func (o Occasion) Valid() bool {
	return o > OccasionNone && o < occasionCount
}

// String returns the wire value.
func (o Occasion) String() string {
	if !o.Valid() {
		return ""
	}
	return occasionTable[o].value
}

// Label returns the display label.
func (o Occasion) Label() string {
	if !o.Valid() {
		return ""
	}
	return occasionTable[o].label
}

// Fields returns the occasion-specific field definitions in display order.
func (o Occasion) Fields() []Field {
	if !o.Valid() {
		return nil
	}
	return append([]Field(nil), occasionTable[o].fields...)
}

func (o Occasion) field(id string) (Field, bool) {
	if !o.Valid() {
		return Field{}, false
	}
	for _, f := range occasionTable[o].fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// MarshalText implements encoding.TextMarshaler.
func (o Occasion) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value clears the occasion.
func (o *Occasion) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = OccasionNone
		return nil
	}
	parsed, err := ParseOccasion(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

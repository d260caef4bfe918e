package category

import "strings"

// Hints carries optional request context consulted when the upload field
// name alone does not identify a category.
type Hints struct {
	Override Category // explicit category set earlier in the request pipeline
	Route    string   // path the upload arrived on
	Referer  string
}

var fieldNames = map[string]Category{
	"calendar":      Calendar,
	"calendarimage": Calendar,
	"eventimage":    Calendar,
	"eventmedia":    Calendar,
	"forum":         Forum,
	"forumimage":    Forum,
	"postimage":     Forum,
	"postmedia":     Forum,
	"vendor":        Vendor,
	"vendorimage":   Vendor,
	"vendorlogo":    Vendor,
	"community":     Community,
	"communityimage": Community,
	"real_estate":   RealEstate,
	"realestate":    RealEstate,
	"listingimage":  RealEstate,
	"listingphoto":  RealEstate,
	"propertyimage": RealEstate,
	"avatar":        Avatar,
	"profileimage":  Avatar,
	"profilephoto":  Avatar,
	"banner":        Banner,
	"bannerimage":   Banner,
	"bannerslide":   Banner,
	"content":       Content,
	"contentimage":  Content,
	"general":       General,
}

// pathHints maps request-path or referer fragments to categories, checked
// in order so the more specific fragments win.
var pathHints = []struct {
	fragment string
	category Category
}{
	{"/real-estate", RealEstate},
	{"/realestate", RealEstate},
	{"/listings", RealEstate},
	{"/forum", Forum},
	{"/calendar", Calendar},
	{"/events", Calendar},
	{"/vendors", Vendor},
	{"/vendor", Vendor},
	{"/community", Community},
	{"/profile", Avatar},
	{"/banners", Banner},
	{"/banner", Banner},
	{"/content", Content},
	{"/pages", Content},
}

// FromFieldName maps an upload form field name to a category. Only exact
// (case-insensitive) matches count; generic names like "file" or
// "mediaFile" are ambiguous and report false so request hints get a say.
func FromFieldName(name string) (Category, bool) {
	c, ok := fieldNames[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Resolve maps an upload form field name plus request hints to a category.
// Precedence: explicit override, exact field-name match, route heuristics,
// referer heuristics, then general. It is total: no input errors.
func Resolve(fieldName string, hints Hints) Category {
	if hints.Override != "" && Known(hints.Override) {
		return hints.Override
	}
	if c, ok := FromFieldName(fieldName); ok {
		return c
	}
	if c, ok := fromPath(hints.Route); ok {
		return c
	}
	if c, ok := fromPath(hints.Referer); ok {
		return c
	}
	return General
}

func fromPath(p string) (Category, bool) {
	if p == "" {
		return "", false
	}
	p = strings.ToLower(p)
	for _, h := range pathHints {
		if strings.Contains(p, h.fragment) {
			return h.category, true
		}
	}
	return "", false
}

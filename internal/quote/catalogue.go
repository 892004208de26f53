package quote

import "math"

// Package is a project type offered on the pricing page. BasePrice is in
// whole pounds.
type Package struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
}

type Feature struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

var packages = []Package{
	{Key: "website", Name: "Business website", BasePrice: 2500},
	{Key: "ecommerce", Name: "Online shop", BasePrice: 4500},
	{Key: "web_app", Name: "Web application", BasePrice: 8000},
	{Key: "landing_page", Name: "Landing page", BasePrice: 900},
	{Key: "branding", Name: "Brand identity", BasePrice: 1500},
	{Key: "maintenance", Name: "Care plan (annual)", BasePrice: 600},
}

var features = []Feature{
	{Key: "cms", Name: "Content management", Price: 500},
	{Key: "blog", Name: "Blog", Price: 300},
	{Key: "seo", Name: "SEO setup", Price: 400},
	{Key: "booking", Name: "Online booking", Price: 750},
	{Key: "payments", Name: "Card payments", Price: 900},
	{Key: "multilingual", Name: "Multiple languages", Price: 600},
	{Key: "analytics", Name: "Analytics dashboard", Price: 200},
	{Key: "copywriting", Name: "Copywriting", Price: 450},
}

var timelineFactors = map[string]float64{
	"rush":     1.25,
	"standard": 1.0,
	"flexible": 0.95,
}

func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

func Features() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

func lookupPackage(key string) (Package, bool) {
	for _, p := range packages {
		if p.Key == key {
			return p, true
		}
	}
	return Package{}, false
}

func lookupFeature(key string) (Feature, bool) {
	for _, f := range features {
		if f.Key == key {
			return f, true
		}
	}
	return Feature{}, false
}

// ValidTimeline reports whether t is empty or a known timeline.
func ValidTimeline(t string) bool {
	if t == "" {
		return true
	}
	_, ok := timelineFactors[t]
	return ok
}

// Estimate prices a request in pence of the base currency. Unknown project
// types and features contribute nothing; Create rejects them beforehand.
func Estimate(projectType string, featureKeys []string, timeline string) int64 {
	var pounds int64
	if p, ok := lookupPackage(projectType); ok {
		pounds = p.BasePrice
	}
	for _, k := range featureKeys {
		if f, ok := lookupFeature(k); ok {
			pounds += f.Price
		}
	}
	factor, ok := timelineFactors[timeline]
	if !ok {
		factor = 1.0
	}
	return int64(math.Round(float64(pounds) * factor * 100))
}

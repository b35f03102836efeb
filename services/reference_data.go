package services

import (
	"encoding/json"

	"gorm.io/datatypes"

	"shelf-guard/models"
)

// jsonStrings verpackt eine String-Liste als JSON-Spaltenwert.
func jsonStrings(values ...string) datatypes.JSON {
	raw, _ := json.Marshal(values)
	return raw
}

// jsonSources verpackt Quellenangaben als JSON-Spaltenwert.
func jsonSources(sources ...models.SourceCitation) datatypes.JSON {
	raw, _ := json.Marshal(sources)
	return raw
}

// DefaultConcernIngredients liefert das eingebaute Referenzset bedenklicher
// Zutaten. Wird beim Start in die DB geseedet und in den Matcher geladen;
// Nutzer-Einträge ergänzen das Set additiv.
func DefaultConcernIngredients() []models.ConcernIngredient {
	return []models.ConcernIngredient{
		{
			Name:          "Monosodium Glutamate",
			Category:      "flavor enhancer",
			Aliases:       jsonStrings("msg", "e621", "glutamic acid monosodium salt", "sodium glutamate"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("headaches in sensitive individuals", "flushing", "numbness"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Questions and Answers on Monosodium glutamate", Publisher: "FDA",
				URL: "https://www.fda.gov/food/food-additives-petitions/questions-and-answers-monosodium-glutamate-msg", Year: 2012,
			}),
		},
		{
			Name:          "Sodium Benzoate",
			Category:      "preservative",
			Aliases:       jsonStrings("e211", "benzoate of soda"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("may form benzene with vitamin c", "hyperactivity in children"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Food additives and hyperactive behaviour", Publisher: "The Lancet", Year: 2007,
			}),
		},
		{
			Name:          "Sodium Nitrite",
			Category:      "preservative",
			Aliases:       jsonStrings("e250", "nitrite"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("forms nitrosamines in cured meat", "linked to colorectal cancer risk"),
			Sources: jsonSources(models.SourceCitation{
				Title: "IARC Monographs on red and processed meat", Publisher: "WHO IARC", Year: 2015,
			}),
		},
		{
			Name:          "High Fructose Corn Syrup",
			Category:      "sweetener",
			Aliases:       jsonStrings("hfcs", "corn syrup high fructose", "glucose-fructose syrup", "isoglucose"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("associated with weight gain and metabolic syndrome"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Consumption of high-fructose corn syrup in beverages", Publisher: "AJCN", Year: 2004,
			}),
		},
		{
			Name:          "Aspartame",
			Category:      "artificial sweetener",
			Aliases:       jsonStrings("e951", "nutrasweet", "equal"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("classified possibly carcinogenic (2B)", "unsafe for phenylketonurics"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Aspartame hazard and risk assessment results", Publisher: "WHO IARC", Year: 2023,
			}),
		},
		{
			Name:          "Sucralose",
			Category:      "artificial sweetener",
			Aliases:       jsonStrings("e955", "splenda"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernLow,
			HealthEffects: jsonStrings("may alter gut microbiome"),
		},
		{
			Name:          "Acesulfame Potassium",
			Category:      "artificial sweetener",
			Aliases:       jsonStrings("acesulfame k", "ace-k", "e950"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernLow,
			HealthEffects: jsonStrings("may alter gut microbiome"),
		},
		{
			Name:          "Red 40",
			Category:      "artificial color",
			Aliases:       jsonStrings("allura red", "e129", "red dye 40", "fd&c red no. 40", "fdandc red no 40"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("hyperactivity in sensitive children", "contains benzidine traces"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Health effects of synthetic food dyes", Publisher: "California OEHHA", Year: 2021,
			}),
		},
		{
			Name:          "Yellow 5",
			Category:      "artificial color",
			Aliases:       jsonStrings("tartrazine", "e102", "yellow dye 5", "fd&c yellow no. 5"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("hyperactivity in sensitive children", "allergic reactions"),
		},
		{
			Name:          "Yellow 6",
			Category:      "artificial color",
			Aliases:       jsonStrings("sunset yellow", "e110", "yellow dye 6"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("hyperactivity in sensitive children"),
		},
		{
			Name:          "Blue 1",
			Category:      "artificial color",
			Aliases:       jsonStrings("brilliant blue", "e133", "blue dye 1"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernLow,
			HealthEffects: jsonStrings("rare allergic reactions"),
		},
		{
			Name:          "Titanium Dioxide",
			Category:      "artificial color",
			Aliases:       jsonStrings("e171", "tio2"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("genotoxicity concerns, banned as food additive in the EU"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Safety assessment of titanium dioxide (E171) as a food additive", Publisher: "EFSA", Year: 2021,
			}),
		},
		{
			Name:          "Butylated Hydroxyanisole",
			Category:      "preservative",
			Aliases:       jsonStrings("bha", "e320"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("reasonably anticipated human carcinogen (NTP)"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Report on Carcinogens, Butylated Hydroxyanisole", Publisher: "NTP", Year: 2021,
			}),
		},
		{
			Name:          "Butylated Hydroxytoluene",
			Category:      "preservative",
			Aliases:       jsonStrings("bht", "e321"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("endocrine disruption concerns in animal studies"),
		},
		{
			Name:          "Potassium Bromate",
			Category:      "flour treatment",
			Aliases:       jsonStrings("e924", "bromated flour"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("possible human carcinogen (2B)", "banned in the EU, UK and Canada"),
			Sources: jsonSources(models.SourceCitation{
				Title: "IARC Monograph Volume 73: Potassium Bromate", Publisher: "WHO IARC", Year: 1999,
			}),
		},
		{
			Name:          "Partially Hydrogenated Oil",
			Category:      "fat",
			Aliases:       jsonStrings("trans fat", "partially hydrogenated soybean oil", "partially hydrogenated vegetable oil"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("raises LDL cholesterol", "cardiovascular disease risk"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Final determination regarding partially hydrogenated oils", Publisher: "FDA", Year: 2015,
			}),
		},
		{
			Name:          "Carrageenan",
			Category:      "thickener",
			Aliases:       jsonStrings("e407", "irish moss extract"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernLow,
			HealthEffects: jsonStrings("gastrointestinal inflammation in animal studies"),
		},
		{
			Name:          "Propylparaben",
			Category:      "preservative",
			Aliases:       jsonStrings("e216", "propyl paraben", "propyl 4-hydroxybenzoate"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("endocrine disruption concerns"),
		},
		{
			Name:          "Brominated Vegetable Oil",
			Category:      "emulsifier",
			Aliases:       jsonStrings("bvo"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernHigh,
			HealthEffects: jsonStrings("bromine accumulation in fatty tissue"),
			Sources: jsonSources(models.SourceCitation{
				Title: "Revocation of authorization for brominated vegetable oil", Publisher: "FDA", Year: 2024,
			}),
		},
		{
			Name:          "Azodicarbonamide",
			Category:      "flour treatment",
			Aliases:       jsonStrings("e927a", "ada"),
			IsToxic:       true,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("respiratory sensitizer in occupational exposure"),
		},
		{
			Name:          "Caramel Color IV",
			Category:      "artificial color",
			Aliases:       jsonStrings("caramel color", "e150d", "sulfite ammonia caramel", "4-mei"),
			IsToxic:       false,
			ConcernLevel:  models.ConcernModerate,
			HealthEffects: jsonStrings("contains 4-methylimidazole, possible carcinogen (2B)"),
		},
	}
}

// DefaultRetailers liefert das eingebaute Händler-Referenzset.
func DefaultRetailers() []models.Retailer {
	return []models.Retailer{
		{Name: "Walmart", Slug: "walmart"},
		{Name: "Target", Slug: "target"},
		{Name: "Kroger", Slug: "kroger"},
		{Name: "Whole Foods", Slug: "whole-foods"},
		{Name: "Safeway", Slug: "safeway"},
	}
}

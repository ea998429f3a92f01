package config

import "github.com/vertextoedge/sharepoint-list-sync/internal/domain"

func attr(name string, fields ...string) domain.AttributeRule {
	return domain.AttributeRule{Name: name, Fields: fields}
}

func required(name string, fields ...string) domain.AttributeRule {
	return domain.AttributeRule{Name: name, Fields: fields, Required: true}
}

func formatted(format domain.FieldFormat, name string, fields ...string) domain.AttributeRule {
	return domain.AttributeRule{Name: name, Fields: fields, Format: format}
}

func slot(name string, fields ...string) domain.MediaSlot {
	return domain.MediaSlot{Name: name, Fields: fields}
}

// DefaultTypes returns the built-in entity types. Generic field_N names are
// the internal names SharePoint assigns to renamed columns, so each chain
// lists the display-derived name first.
func DefaultTypes() []domain.TypeSpec {
	return []domain.TypeSpec{
		{
			Name:     "shows",
			ListName: "Shows",
			Attributes: []domain.AttributeRule{
				required("name", "ShowName", "field_2", "Title"),
				attr("time_slot", "TimeSlot"),
				attr("author", "Author"),
				attr("sub_authors", "Sub_x002d_Authors"),
				attr("director", "field_4"),
				attr("associate_director", "field_5"),
				formatted(domain.FormatDate, "start_date", "field_6"),
				formatted(domain.FormatDate, "end_date", "field_7"),
				attr("show_dates", "field_8"),
				attr("synopsis", "field_9"),
				attr("season", "SeasonIDLookup_x003a_SeasonName"),
			},
			Media: []domain.MediaSlot{
				slot("sm_image", "SMImage"),
				slot("program", "ProgramFileURL"),
			},
			References: []domain.Reference{
				{Attribute: "season", TargetType: "seasons", TargetAttribute: "name"},
			},
		},
		{
			Name:     "seasons",
			ListName: "Seasons",
			Attributes: []domain.AttributeRule{
				required("name", "SeasonName", "field_1", "Title"),
				formatted(domain.FormatDate, "start_date", "StartDate", "field_2"),
				formatted(domain.FormatDate, "end_date", "EndDate", "field_3"),
				formatted(domain.FormatBool, "is_current", "IsCurrentSeason", "field_4"),
				formatted(domain.FormatBool, "is_upcoming", "IsUpcomingSeason", "field_5"),
			},
			Media: []domain.MediaSlot{
				slot("social_banner", "WebsiteBanner", "field_6"),
				slot("image_front", "3-upFront", "_x0033__x002d_upFront", "field_7"),
				slot("image_back", "3-upBack", "_x0033__x002d_upBack", "field_8"),
				slot("sm_square", "SMSquare", "field_9"),
				slot("sm_portrait", "SMPortrait", "field_10"),
			},
		},
		{
			Name:     "sponsors",
			ListName: "Sponsors",
			Attributes: []domain.AttributeRule{
				required("name", "Title"),
				attr("company", "Company"),
				attr("sponsor_level", "SponsorshipLevel", "SponsorLevel", "Level"),
				formatted(domain.FormatURL, "website", "Website"),
			},
			Media: []domain.MediaSlot{
				slot("logo", "Logo"),
				slot("banner", "Banner"),
			},
		},
		{
			Name:     "advertisers",
			ListName: "Advertisers",
			Attributes: []domain.AttributeRule{
				required("name", "Title"),
				formatted(domain.FormatURL, "website", "Website"),
				formatted(domain.FormatBool, "restaurant", "IsRestaurant"),
				attr("description", "Description"),
			},
			Media: []domain.MediaSlot{
				slot("logo", "Logo"),
				slot("banner", "Banner"),
				slot("pdf", "PDF"),
			},
		},
		{
			Name:     "board_members",
			ListName: "Board Members",
			Attributes: []domain.AttributeRule{
				required("name", "Title"),
				attr("position", "Position"),
			},
			Media: []domain.MediaSlot{
				slot("photo", "Photo"),
			},
		},
		{
			Name:     "cast",
			ListName: "Cast",
			Attributes: []domain.AttributeRule{
				required("character_name", "field_2", "Title"),
				attr("actor_name", "field_3"),
				attr("show", "ShowIDLookup_x003a_ShowName"),
			},
			Media: []domain.MediaSlot{
				slot("picture", "Headshot"),
			},
			References: []domain.Reference{
				{Attribute: "show", TargetType: "shows", TargetAttribute: "name"},
			},
		},
		{
			Name:     "contributors",
			ListName: "Contributors",
			Attributes: []domain.AttributeRule{
				required("name", "Title", "Name"),
				attr("company", "Company"),
				attr("level", "Level", "ContributionLevel"),
			},
		},
		{
			Name:     "testimonials",
			ListName: "Testimonials",
			Attributes: []domain.AttributeRule{
				required("name", "Title", "Name"),
				attr("comment", "Comment", "Testimonial"),
				formatted(domain.FormatNumber, "rating", "Rating"),
			},
		},
	}
}

// MergeTypes overlays configured types on the built-ins. A configured type
// replaces the built-in of the same name; new names are appended.
func MergeTypes(builtin, configured []domain.TypeSpec) []domain.TypeSpec {
	merged := make([]domain.TypeSpec, 0, len(builtin)+len(configured))
	index := make(map[string]int, len(builtin))
	for _, t := range builtin {
		index[t.Name] = len(merged)
		merged = append(merged, t)
	}
	for _, t := range configured {
		if i, ok := index[t.Name]; ok {
			merged[i] = t
			continue
		}
		index[t.Name] = len(merged)
		merged = append(merged, t)
	}
	return merged
}

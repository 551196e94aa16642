package catalog

import (
	"fmt"
	"strings"
)

// Field lists requested from /games. Lists omit platforms and DLCs; the
// detail query carries everything the importer needs.
const (
	listFields = "name, cover.url, summary, screenshots.url, artworks.url, videos.video_id, " +
		"genres.name, aggregated_rating, total_rating_count, rating_count, " +
		"involved_companies.company.name, involved_companies.developer, involved_companies.publisher"

	detailFields = "name, cover.url, summary, aggregated_rating, total_rating_count, " +
		"genres.name, platforms.name, first_release_date, " +
		"involved_companies.company.name, involved_companies.company.country, " +
		"involved_companies.company.start_date, " +
		"involved_companies.developer, involved_companies.publisher, " +
		"dlcs.name, dlcs.summary, screenshots.url, artworks.url, videos.video_id"
)

// popularMinRatings is the rating_count floor for the popular listing.
const popularMinRatings = 300

// escape makes s safe inside an Apicalypse string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(strings.TrimSpace(s))
}

func searchQuery(q string, limit, offset int) string {
	return fmt.Sprintf(
		`fields %s; where name ~ "%s"* & total_rating_count != null; sort total_rating_count desc; limit %d; offset %d;`,
		listFields, escape(q), limit, offset)
}

func byIDQuery(id int64) string {
	return fmt.Sprintf(`fields %s; where id = %d;`, detailFields, id)
}

func genreLookupQuery(name string) string {
	return fmt.Sprintf(`fields id; where name ~ "%s"*; limit 1;`, escape(name))
}

func byGenreQuery(genreID int64, limit, offset int) string {
	return fmt.Sprintf(
		`fields %s; where genres = (%d) & total_rating_count != null; sort total_rating_count desc; limit %d; offset %d;`,
		listFields, genreID, limit, offset)
}

func popularQuery(limit, offset int) string {
	return fmt.Sprintf(
		`fields %s; where rating_count >= %d; sort rating_count desc; limit %d; offset %d;`,
		listFields, popularMinRatings, limit, offset)
}

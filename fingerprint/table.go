// Package fingerprint identifies third-party services behind dangling CNAME
// records and classifies takeover exposure from combined DNS and HTTP
// evidence.
package fingerprint

// Entry describes one service's takeover signature: CNAME substrings that
// place a candidate on the service, HTTP body substrings that confirm the
// resource is unclaimed, and whether an unclaimed resource is claimable.
type Entry struct {
	Service    string
	CNAMEs     []string
	HTTP       []string
	Vulnerable bool
}

// Table is an ordered list of entries. Order is load-bearing: when a CNAME
// matches several entries the earliest one wins, so tie-breaks stay
// reproducible across runs.
type Table []Entry

// DefaultTable returns the built-in service table. Shared read-only across
// all workers; callers must not mutate it.
func DefaultTable() Table {
	return defaultTable
}

var defaultTable = Table{
	{
		Service:    "AWS/S3",
		CNAMEs:     []string{"s3.amazonaws.com", "s3-website"},
		HTTP:       []string{"NoSuchBucket", "The specified bucket does not exist"},
		Vulnerable: true,
	},
	{
		Service:    "GitHub Pages",
		CNAMEs:     []string{"github.io"},
		HTTP:       []string{"There isn't a GitHub Pages site here", "For root URLs"},
		Vulnerable: true,
	},
	{
		Service:    "Heroku",
		CNAMEs:     []string{"herokuapp.com", "herokussl.com"},
		HTTP:       []string{"No such app", "There's nothing here", "herokucdn.com/error-pages"},
		Vulnerable: true,
	},
	{
		Service:    "Shopify",
		CNAMEs:     []string{"myshopify.com"},
		HTTP:       []string{"Sorry, this shop is currently unavailable", "Only one step left"},
		Vulnerable: true,
	},
	{
		Service:    "Tumblr",
		CNAMEs:     []string{"tumblr.com"},
		HTTP:       []string{"Whatever you were looking for doesn't currently exist", "There's nothing here"},
		Vulnerable: true,
	},
	{
		Service:    "WordPress",
		CNAMEs:     []string{"wordpress.com"},
		HTTP:       []string{"Do you want to register"},
		Vulnerable: true,
	},
	{
		Service:    "Ghost",
		CNAMEs:     []string{"ghost.io"},
		HTTP:       []string{"The thing you were looking for is no longer here"},
		Vulnerable: true,
	},
	{
		Service:    "Zendesk",
		CNAMEs:     []string{"zendesk.com"},
		HTTP:       []string{"Help Center Closed", "this help center no longer exists"},
		Vulnerable: true,
	},
	{
		Service:    "Fastly",
		CNAMEs:     []string{"fastly.net"},
		HTTP:       []string{"Fastly error: unknown domain"},
		Vulnerable: true,
	},
	{
		Service:    "Pantheon",
		CNAMEs:     []string{"pantheonsite.io"},
		HTTP:       []string{"404 error unknown site"},
		Vulnerable: true,
	},
	{
		Service:    "Azure",
		CNAMEs:     []string{"azurewebsites.net", "cloudapp.net", "cloudapp.azure.com"},
		HTTP:       []string{"404 Web Site not found", "Error 404 - Web app not found"},
		Vulnerable: true,
	},
	{
		Service:    "Unbounce",
		CNAMEs:     []string{"unbouncepages.com"},
		HTTP:       []string{"The requested URL was not found on this server"},
		Vulnerable: true,
	},
	{
		Service:    "Surge.sh",
		CNAMEs:     []string{"surge.sh"},
		HTTP:       []string{"project not found"},
		Vulnerable: true,
	},
	{
		Service:    "Bitbucket",
		CNAMEs:     []string{"bitbucket.io"},
		HTTP:       []string{"Repository not found"},
		Vulnerable: true,
	},
	{
		Service:    "Netlify",
		CNAMEs:     []string{"netlify.com", "netlify.app"},
		HTTP:       []string{"Not Found - Request ID"},
		Vulnerable: true,
	},
	{
		Service:    "Cargo",
		CNAMEs:     []string{"cargocollective.com"},
		HTTP:       []string{"404 Not Found"},
		Vulnerable: true,
	},
	{
		Service:    "Statuspage",
		CNAMEs:     []string{"statuspage.io"},
		HTTP:       []string{"You are being", "redirected"},
		Vulnerable: true,
	},
	{
		Service:    "Uservoice",
		CNAMEs:     []string{"uservoice.com"},
		HTTP:       []string{"This UserVoice subdomain is currently unavailable"},
		Vulnerable: true,
	},
	{
		Service:    "Cloudfront",
		CNAMEs:     []string{"cloudfront.net"},
		HTTP:       []string{"ERROR: The request could not be satisfied", "Bad request"},
		Vulnerable: true,
	},
}

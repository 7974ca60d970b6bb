package company

// Industry is the sector a company operates in.
type Industry string

const (
	IndustrySaaS               Industry = "SaaS"
	IndustryFintech            Industry = "Fintech"
	IndustryHealthtech         Industry = "Healthtech"
	IndustryEcommerce          Industry = "Ecommerce"
	IndustryAgency             Industry = "Agency"
	IndustryGaming             Industry = "Gaming"
	IndustryAI                 Industry = "AI"
	IndustryCleantech          Industry = "Cleantech"
	IndustryTelecommunications Industry = "Telecommunications"
)

// Industries lists every accepted industry in display order.
var Industries = []Industry{
	IndustrySaaS, IndustryFintech, IndustryHealthtech, IndustryEcommerce,
	IndustryAgency, IndustryGaming, IndustryAI, IndustryCleantech,
	IndustryTelecommunications,
}

// ParseIndustry matches s case-sensitively against Industries.
func ParseIndustry(s string) (Industry, bool) {
	for _, v := range Industries {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// RemotePolicy is a company's work-location policy.
type RemotePolicy string

const (
	RemotePolicyRemote RemotePolicy = "Remote"
	RemotePolicyHybrid RemotePolicy = "Hybrid"
	RemotePolicyOnsite RemotePolicy = "Onsite"
)

// RemotePolicies lists every accepted remote policy.
var RemotePolicies = []RemotePolicy{
	RemotePolicyRemote, RemotePolicyHybrid, RemotePolicyOnsite,
}

// ParseRemotePolicy matches s case-sensitively against RemotePolicies.
func ParseRemotePolicy(s string) (RemotePolicy, bool) {
	for _, v := range RemotePolicies {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Province is a two-letter Canadian province or territory code.
type Province string

const (
	ProvinceAB Province = "AB"
	ProvinceBC Province = "BC"
	ProvinceMB Province = "MB"
	ProvinceNB Province = "NB"
	ProvinceNL Province = "NL"
	ProvinceNS Province = "NS"
	ProvinceNT Province = "NT"
	ProvinceNU Province = "NU"
	ProvinceON Province = "ON"
	ProvincePE Province = "PE"
	ProvinceQC Province = "QC"
	ProvinceSK Province = "SK"
	ProvinceYT Province = "YT"
)

// Provinces lists all 13 provinces and territories.
var Provinces = []Province{
	ProvinceAB, ProvinceBC, ProvinceMB, ProvinceNB, ProvinceNL, ProvinceNS,
	ProvinceNT, ProvinceNU, ProvinceON, ProvincePE, ProvinceQC, ProvinceSK,
	ProvinceYT,
}

// ParseProvince matches s case-sensitively against Provinces.
func ParseProvince(s string) (Province, bool) {
	for _, v := range Provinces {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Strings converts a closed set to its string values.
func Strings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

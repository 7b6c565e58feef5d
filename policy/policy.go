// Package policy holds the youth-policy domain model: the closed code sets
// used by the policy store, the sentinel wildcard values, and the projections
// exchanged between the pipeline stages and callers.
package policy

// Sentinel values used by the policy store. A row carrying one of these in an
// eligibility column matches every user, regardless of the user's attribute.
const (
	// NoRestriction marks an eligibility code column as unconstrained.
	NoRestriction = "제한없음"

	// Nationwide marks a region column as matching every region.
	Nationwide = "전국"

	// UnrestrictedAge is the sentinel in sprt_trgt_min_age/sprt_trgt_max_age.
	// A row is age-unrestricted only when BOTH bounds hold this value.
	UnrestrictedAge = 0
)

// Category is the top-level policy classification (lclsf_nm).
type Category string

const (
	CategoryHousing     Category = "주거"
	CategoryJobs        Category = "일자리"
	CategoryGeneral     Category = "일반"
	CategoryOtherPolicy Category = "그 외 정책"
	CategoryOther       Category = "기타"
)

// Valid reports whether the category belongs to the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryHousing, CategoryJobs, CategoryGeneral, CategoryOtherPolicy, CategoryOther:
		return true
	}
	return false
}

// Supported reports whether the pipeline answers questions in this category.
func (c Category) Supported() bool {
	switch c {
	case CategoryHousing, CategoryJobs, CategoryGeneral:
		return true
	}
	return false
}

// SubCategory is the second-level classification (mclsf_nm). Only meaningful
// for housing and jobs categories.
type SubCategory string

const (
	SubCategoryLoanSupport     SubCategory = "대출, 이자, 전월세 등 금융지원"
	SubCategoryRentalSupport   SubCategory = "임대주택, 기숙사 등 주거지원"
	SubCategorySubsidySupport  SubCategory = "이사비, 부동산 중개비 등 보조금지원"
	SubCategoryTraining        SubCategory = "전문인력양성, 훈련"
	SubCategoryStartup         SubCategory = "창업"
	SubCategoryJobPlacement    SubCategory = "취업 전후 지원"
)

// Valid reports whether the sub-category belongs to the closed set. The empty
// string is valid: the classifier leaves it unset outside housing/jobs.
func (s SubCategory) Valid() bool {
	switch s {
	case "", SubCategoryLoanSupport, SubCategoryRentalSupport, SubCategorySubsidySupport,
		SubCategoryTraining, SubCategoryStartup, SubCategoryJobPlacement:
		return true
	}
	return false
}

// QueryIntent describes what the user wants from the pipeline.
type QueryIntent string

const (
	IntentPolicySearch QueryIntent = "맞춤 정책 검색"
	IntentPolicyDetail QueryIntent = "정책 상세 설명"
	IntentOther        QueryIntent = "기타"
)

// Valid reports whether the intent belongs to the closed set.
func (q QueryIntent) Valid() bool {
	switch q {
	case IntentPolicySearch, IntentPolicyDetail, IntentOther:
		return true
	}
	return false
}

// MaritalStatus is the mrg_stts_cd user condition.
type MaritalStatus string

const (
	MaritalMarried MaritalStatus = "기혼"
	MaritalSingle  MaritalStatus = "미혼"
)

// Valid reports whether the status belongs to the closed set; empty means unset.
func (m MaritalStatus) Valid() bool {
	switch m {
	case "", MaritalMarried, MaritalSingle:
		return true
	}
	return false
}

// Major is the plcy_major_cd user condition.
type Major string

const (
	MajorHumanities     Major = "인문계열"
	MajorNatural        Major = "자연계열"
	MajorSocial         Major = "사회계열"
	MajorCommerce       Major = "상경계열"
	MajorScience        Major = "이학계열"
	MajorEngineering    Major = "공학계열"
	MajorArtsAndSports  Major = "예체능계열"
	MajorAgroIndustrial Major = "농산업계열"
)

// Valid reports whether the major belongs to the closed set; empty means unset.
func (m Major) Valid() bool {
	switch m {
	case "", MajorHumanities, MajorNatural, MajorSocial, MajorCommerce,
		MajorScience, MajorEngineering, MajorArtsAndSports, MajorAgroIndustrial:
		return true
	}
	return false
}

// JobStatus is the job_cd user condition.
type JobStatus string

const (
	JobEmployed      JobStatus = "재직자"
	JobUnemployed    JobStatus = "미취업자"
	JobSelfEmployed  JobStatus = "자영업자"
	JobFounder       JobStatus = "(예비)창업자"
	JobFarmer        JobStatus = "영농종사자"
	JobNonRegular    JobStatus = "비정규직"
)

// Valid reports whether the job status belongs to the closed set; empty means unset.
func (j JobStatus) Valid() bool {
	switch j {
	case "", JobEmployed, JobUnemployed, JobSelfEmployed, JobFounder, JobFarmer, JobNonRegular:
		return true
	}
	return false
}

// Education is the school_cd user condition.
type Education string

const (
	EducationBelowHighSchool Education = "고졸 미만"
	EducationHighSchool      Education = "고교 재학"
	EducationHSGradPending   Education = "고졸 예정"
	EducationHSGraduate      Education = "고교 졸업"
	EducationCollege         Education = "대학 재학"
	EducationGradPending     Education = "대졸 예정"
	EducationGraduate        Education = "대학 졸업"
	EducationPostgraduate    Education = "석·박사"
)

// Valid reports whether the education level belongs to the closed set; empty means unset.
func (e Education) Valid() bool {
	switch e {
	case "", EducationBelowHighSchool, EducationHighSchool, EducationHSGradPending,
		EducationHSGraduate, EducationCollege, EducationGradPending,
		EducationGraduate, EducationPostgraduate:
		return true
	}
	return false
}

// SelectedPolicy is the narrowed projection the selector stage produces and
// the caller consumes for interest tracking. List order is relevance order.
type SelectedPolicy struct {
	PolicyNo    string `json:"plcy_no"`
	Name        string `json:"plcy_nm"`
	Description string `json:"plcy_expln_nm"`
	Category    string `json:"lclsf_nm"`
	SubCategory string `json:"mclsf_nm"`
	Region      string `json:"zip_cd"`
	InquiryCnt  int    `json:"inq_cnt"`
}

// Table names the pipeline is allowed to query.
var KnownTables = []string{"policies", "policy_conditions"}

// Columns stripped from raw rows before they are exposed to callers.
var restrictedColumns = map[string]struct{}{
	"aply_url_addr": {},
	"ref_url_addr1": {},
	"ref_url_addr2": {},
}

// FilterRows returns a copy of the raw result rows with restricted columns
// removed. The input rows are not modified.
func FilterRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	filtered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		clean := make(map[string]any, len(row))
		for col, val := range row {
			if _, restricted := restrictedColumns[col]; restricted {
				continue
			}
			clean[col] = val
		}
		filtered = append(filtered, clean)
	}
	return filtered
}

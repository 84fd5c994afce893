package domain

// Overview is the admin dashboard summary.
type Overview struct {
	TotalUsers int
	TotalOTPs  int
	ActiveOTPs int
	LatestOTP  *OTPListing
	LatestUser *PublicUser
}

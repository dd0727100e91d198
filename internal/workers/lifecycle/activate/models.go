// internal/workers/lifecycle/activate/models.go
package activate

type Output struct {
	Kept    string   `json:"kept"`
	Deleted []string `json:"deleted"`
	Claimed bool     `json:"claimed"`
}

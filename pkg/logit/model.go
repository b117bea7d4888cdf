// pkg/logit/model.go
package logit

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/retailscope/campaign-response/pkg/model"
)

// Fit errors. All are fatal: no partial or approximate model is produced.
var (
	ErrBadLabel       = errors.New("label outside {0,1}")
	ErrDegenerateData = errors.New("degenerate training data")
	ErrSingular       = errors.New("design matrix is singular")
	ErrNoConvergence  = errors.New("IRLS did not converge")
)

const (
	maxIterations = 50
	tolerance     = 1e-8

	// Fitted probabilities are clamped away from 0 and 1 to keep the IRLS
	// weights finite.
	probEps = 1e-10
)

// Coefficient is one fitted model term with its standard error.
type Coefficient struct {
	Term     string
	Estimate float64
	StdErr   float64
}

// Model is a fitted logistic regression of the response label on txns,
// spend, and the encoded demographic attributes.
type Model struct {
	enc        *Encoder
	coef       []float64
	cov        *mat.Dense
	Iterations int
	Deviance   float64
}

// Fit fits the model by iteratively reweighted least squares. The label must
// be 0/1 with both classes present; any zero-variance predictor or singular
// system aborts the fit.
func Fit(set model.TrainingSet) (*Model, error) {
	logger := zap.L().Named("logit")

	if err := validateLabels(set.Rows); err != nil {
		return nil, err
	}

	enc, err := FitEncoder(set)
	if err != nil {
		return nil, err
	}

	X, y, err := enc.matrix(set.Rows)
	if err != nil {
		return nil, err
	}

	n, p := X.Dims()
	if n <= p {
		return nil, fmt.Errorf("%w: %d rows for %d model terms", ErrDegenerateData, n, p)
	}

	beta := mat.NewVecDense(p, nil)
	w := make([]float64, n)
	wz := make([]float64, n)
	var xtwx mat.Dense

	converged := false
	iterations := 0
	for iter := 0; iter < maxIterations; iter++ {
		iterations = iter + 1

		// Working weights and response from the current linear predictor.
		var eta mat.VecDense
		eta.MulVec(X, beta)
		for i := 0; i < n; i++ {
			mu := sigmoid(eta.AtVec(i))
			mu = clamp(mu, probEps, 1-probEps)
			wi := mu * (1 - mu)
			w[i] = wi
			// w_i * z_i with z_i = eta_i + (y_i - mu_i)/w_i simplifies to
			// w_i*eta_i + (y_i - mu_i).
			wz[i] = wi*eta.AtVec(i) + (y[i] - mu)
		}

		var xw mat.Dense
		xw.Mul(mat.NewDiagDense(n, w), X)
		xtwx.Mul(X.T(), &xw)

		var xtwz mat.VecDense
		xtwz.MulVec(X.T(), mat.NewVecDense(n, wz))

		var next mat.VecDense
		if err := next.SolveVec(&xtwx, &xtwz); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}

		delta := 0.0
		for j := 0; j < p; j++ {
			d := math.Abs(next.AtVec(j) - beta.AtVec(j))
			if d > delta {
				delta = d
			}
		}
		beta.CopyVec(&next)

		if delta < tolerance {
			converged = true
			break
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w after %d iterations", ErrNoConvergence, maxIterations)
	}

	// Fisher-information covariance at the converged weights.
	var cov mat.Dense
	if err := cov.Inverse(&xtwx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = beta.AtVec(j)
	}

	m := &Model{
		enc:        enc,
		coef:       coef,
		cov:        &cov,
		Iterations: iterations,
		Deviance:   deviance(X, y, coef),
	}

	logger.Info("Fitted logistic regression",
		zap.Int("rows", n),
		zap.Int("terms", p),
		zap.Int("iterations", iterations),
		zap.Float64("deviance", m.Deviance))

	return m, nil
}

// Coefficients returns the fitted terms in design order with their standard
// errors.
func (m *Model) Coefficients() []Coefficient {
	terms := m.enc.Terms()
	out := make([]Coefficient, len(terms))
	for j, term := range terms {
		out[j] = Coefficient{
			Term:     term,
			Estimate: m.coef[j],
			StdErr:   math.Sqrt(m.cov.At(j, j)),
		}
	}
	return out
}

// PredictProba returns the predicted response probability for one customer,
// on the response scale.
func (m *Model) PredictProba(row model.JoinedCustomerRow) (float64, error) {
	p, _, err := m.predict(row, false)
	return p, err
}

// PredictWithStdErr returns the predicted probability together with its
// standard error on the response scale (delta method).
func (m *Model) PredictWithStdErr(row model.JoinedCustomerRow) (float64, float64, error) {
	return m.predict(row, true)
}

func (m *Model) predict(row model.JoinedCustomerRow, withSE bool) (float64, float64, error) {
	x, err := m.enc.Encode(row)
	if err != nil {
		return 0, 0, err
	}

	eta := 0.0
	for j, xj := range x {
		eta += m.coef[j] * xj
	}
	p := sigmoid(eta)

	if !withSE {
		return p, 0, nil
	}

	// Var(eta) = x' Cov x; response-scale SE via d(sigmoid)/d(eta).
	xv := mat.NewVecDense(len(x), x)
	var cx mat.VecDense
	cx.MulVec(m.cov, xv)
	se := math.Sqrt(mat.Dot(xv, &cx)) * p * (1 - p)

	return p, se, nil
}

func validateLabels(rows []model.TrainingRow) error {
	var zeros, ones int
	for _, row := range rows {
		switch row.Respond {
		case 0:
			zeros++
		case 1:
			ones++
		default:
			return fmt.Errorf("%w: %v (customer %s)", ErrBadLabel, row.Respond, row.ID)
		}
	}
	if zeros == 0 || ones == 0 {
		return fmt.Errorf("%w: label has a single class (%d zeros, %d ones)",
			ErrDegenerateData, zeros, ones)
	}
	return nil
}

func deviance(X *mat.Dense, y []float64, coef []float64) float64 {
	n, p := X.Dims()
	d := 0.0
	for i := 0; i < n; i++ {
		eta := 0.0
		for j := 0; j < p; j++ {
			eta += coef[j] * X.At(i, j)
		}
		mu := clamp(sigmoid(eta), probEps, 1-probEps)
		d += y[i]*math.Log(mu) + (1-y[i])*math.Log(1-mu)
	}
	return -2 * d
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

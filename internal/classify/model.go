package classify

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Model is the trained artifact the Classifier scores messages against once
// the rule fast-paths don't decide the label outright: a TF-IDF vectorizer
// fit over a labeled corpus at training time, combined with a calibrated
// logistic-regression classifier over [tfidf vector ‖ handcrafted features].
//
// Model is a plain value type so it gob-encodes/decodes as an opaque blob.
type Model struct {
	Vocabulary map[string]int // token -> column index into the TF-IDF vector
	IDF        []float64      // inverse document frequency, aligned to Vocabulary indices
	Weights    []float64      // logistic regression coefficients, len(Vocabulary)+handcraftedFeatureCount
	Bias       float64
	Threshold  float64 // probability threshold for IsJob == true, fit at training time
}

// LoadModel reads a gob-encoded Model from path.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classify: open model %s: %w", path, err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&m); err != nil {
		return nil, fmt.Errorf("classify: decode model %s: %w", path, err)
	}
	if len(m.Vocabulary) == 0 || len(m.Weights) != len(m.Vocabulary)+handcraftedFeatureCount {
		return nil, fmt.Errorf("classify: model %s is malformed", path)
	}
	return &m, nil
}

// Save writes m as a gob-encoded blob to path.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("classify: create model %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("classify: encode model %s: %w", path, err)
	}
	return w.Flush()
}

// TrainingExample is one labeled document used by Fit.
type TrainingExample struct {
	Text    string
	IsJob   bool
}

// tokenize lowercases and splits on non-alphanumeric runs, the simplest
// tokenizer that still normalizes punctuation-adjacent words like
// "engineer," and "engineer.".
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Fit trains a Model from labeled examples: builds the TF-IDF vocabulary,
// then fits a logistic regression over [tfidf ‖ handcrafted features] by
// batch gradient descent. epochs and learningRate control convergence; the
// decision threshold is the candidate from 0.1 to 0.9 (step 0.05) that
// calibrateThreshold finds most accurate on the training set itself, the
// lowest such candidate on ties (retrain is expected to be run offline against
// a held-out set in practice; in-sample calibration here keeps the CLI
// command self-contained).
func Fit(examples []TrainingExample, epochs int, learningRate float64) (*Model, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("classify: fit: no training examples")
	}

	docFreq := make(map[string]int)
	docsTokens := make([][]string, len(examples))
	for i, ex := range examples {
		toks := tokenize(ex.Text)
		docsTokens[i] = toks
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				docFreq[t]++
				seen[t] = true
			}
		}
	}

	// Keep tokens seen in at least 2 documents to bound vocabulary size and
	// drop one-off noise tokens.
	vocab := make(map[string]int)
	var terms []string
	for term, df := range docFreq {
		if df >= 2 {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	for i, term := range terms {
		vocab[term] = i
	}

	n := float64(len(examples))
	idf := make([]float64, len(vocab))
	for term, idx := range vocab {
		idf[idx] = math.Log(n/float64(1+docFreq[term])) + 1
	}

	dim := len(vocab) + handcraftedFeatureCount
	weights := make([]float64, dim)
	bias := 0.0

	vectors := make([][]float64, len(examples))
	labels := make([]float64, len(examples))
	for i, ex := range examples {
		vectors[i] = vectorize(docsTokens[i], ex.Text, vocab, idf)
		if ex.IsJob {
			labels[i] = 1
		}
	}

	if epochs <= 0 {
		epochs = 200
	}
	if learningRate <= 0 {
		learningRate = 0.1
	}

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, vec := range vectors {
			pred := sigmoid(dot(weights, vec) + bias)
			err := pred - labels[i]
			for j, v := range vec {
				gradW[j] += err * v
			}
			gradB += err
		}
		for j := range weights {
			weights[j] -= learningRate * gradW[j] / n
		}
		bias -= learningRate * gradB / n
	}

	m := &Model{Vocabulary: vocab, IDF: idf, Weights: weights, Bias: bias, Threshold: 0.5}
	m.Threshold = calibrateThreshold(m, vectors, labels)
	return m, nil
}

func vectorize(tokens []string, rawText string, vocab map[string]int, idf []float64) []float64 {
	dim := len(vocab) + handcraftedFeatureCount
	vec := make([]float64, dim)

	tf := make(map[int]float64)
	for _, t := range tokens {
		if idx, ok := vocab[t]; ok {
			tf[idx]++
		}
	}
	for idx, count := range tf {
		freq := count / float64(len(tokens)+1)
		vec[idx] = freq * idf[idx]
	}

	handcrafted := Extract(Normalize(rawText)).Vector()
	copy(vec[len(vocab):], handcrafted)
	return vec
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// calibrateThreshold scans candidate thresholds and picks the one
// maximizing accuracy on the fitting set.
func calibrateThreshold(m *Model, vectors [][]float64, labels []float64) float64 {
	best, bestAcc := 0.5, -1.0
	for t := 0.1; t <= 0.9; t += 0.05 {
		correct := 0
		for i, vec := range vectors {
			pred := sigmoid(dot(m.Weights, vec) + m.Bias)
			predicted := 0.0
			if pred >= t {
				predicted = 1
			}
			if predicted == labels[i] {
				correct++
			}
		}
		acc := float64(correct) / float64(len(vectors))
		if acc > bestAcc {
			bestAcc, best = acc, t
		}
	}
	return best
}

// Predict scores text against m, returning the model's job probability.
func (m *Model) Predict(text string) float64 {
	tokens := tokenize(text)
	vec := vectorize(tokens, text, m.Vocabulary, m.IDF)
	return sigmoid(dot(m.Weights, vec) + m.Bias)
}

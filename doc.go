// Package ensemble trains, evaluates and compares multiclass classifiers on a
// tabular dataset.
//
// The workflow reads a raw CSV, splits it into stratified train and test
// sets, preprocesses the features (low variance removal, scaling, ANOVA F
// K-best selection), fits several ensemble and baseline models, and reports
// their metrics, confusion matrices, feature importances and learning curves.
//
// # Quick Start
//
// Programmatic use of the building blocks:
//
//	package main
//
//	import (
//	    "log"
//	    "os"
//
//	    "github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
//	    "github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
//	    "github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/preprocessing"
//	)
//
//	func main() {
//	    // XTrain, XTest: *mat.Dense, yTrain: []string, yTest: *mat.VecDense of codes
//	    p := preprocessing.NewDataPreprocessor(preprocessing.WithKBest(10))
//	    XTr, XTe, codes, err := p.Preprocess(XTrain, XTest, yTrain)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    clf, _ := models.New(models.KindRandomForest, map[string]interface{}{"n_estimators": 200})
//	    if err := clf.Fit(XTr, column(codes)); err != nil {
//	        log.Fatal(err)
//	    }
//	    evaluation.EvaluateModel(clf, XTe, yTest, p.ClassNames(), os.Stdout)
//	}
//
// The whole workflow is driven by the ensemble command:
//
//	ensemble init-config ensemble.yaml
//	ensemble train -c ensemble.yaml
//	ensemble predict -c ensemble.yaml --model "Random Forest" -n 5
//
// # Packages
//
//   - preprocessing: LabelEncoder, VarianceThreshold, scalers, SelectKBest, DataPreprocessor
//   - sklearn/tree, sklearn/ensemble, sklearn/linear_model: classifiers
//   - metrics: accuracy, precision/recall/F1, confusion matrix, ROC AUC, report
//   - model_selection: splits, cross validation, learning curves
//   - evaluation: Evaluator and model comparison
//   - report: plots and JSON results
//   - models: model factory, bundles and the bundle cache
//   - dataset, config, store, workflow: the end-to-end workflow
//   - core/model, core/parallel, pkg/errors, pkg/log: shared infrastructure
package ensemble
